package grouping

import (
	"context"
	"regexp"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// streetPatterns detect a street mention per language when the intent did not
// already classify the anchor. Word-boundary forms only apply to Latin
// scripts; Hebrew and Arabic rely on the prefix word itself.
var streetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(street|st\.|avenue|ave\.?|boulevard|blvd\.?|road|rd\.)\b`),
	regexp.MustCompile(`(?i)\b(rue|av\.)\b`),
	regexp.MustCompile(`(?i)\b(calle|avenida)\b`),
	regexp.MustCompile(`(?i)(улица|ул\.|проспект)`),
	regexp.MustCompile(`רחוב|רח'`),
	regexp.MustCompile(`شارع`),
}

// IsStreetQuery reports whether the request targets a specific street. The
// intent's anchor classification wins; the regexes are the fallback.
func IsStreetQuery(intent *models.Intent, query string) bool {
	if intent.LocationAnchor.Type == models.AnchorStreet {
		return true
	}
	for _, p := range streetPatterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

// FetchFunc runs one provider call at the given radius around the anchor.
type FetchFunc func(ctx context.Context, radiusMeters int) ([]models.PlaceResult, error)

// Grouper runs the dual-radius street fetch and assigns group tags. A group
// below its minimum result count is not shown, though its results stay in the
// flat union.
type Grouper struct {
	exactRadius  int
	nearbyRadius int
	minExact     int
	minNearby    int
	logger       *zap.Logger
}

func New(exactRadius, nearbyRadius, minExact, minNearby int, logger *zap.Logger) *Grouper {
	return &Grouper{
		exactRadius:  exactRadius,
		nearbyRadius: nearbyRadius,
		minExact:     minExact,
		minNearby:    minNearby,
		logger:       logger,
	}
}

// Output is the grouped result set. Results carries the flat deduplicated
// union of everything within the nearby radius; Groups omits empty entries.
type Output struct {
	Results []models.PlaceResult
	Groups  []models.ResultGroup
}

// Run issues the two provider calls concurrently so total latency equals the
// slower call. The union is deduplicated by place id, each result is tagged
// with its group kind and haversine distance from the anchor.
func (g *Grouper) Run(ctx context.Context, center models.LatLng, uiLang models.Language, fetch FetchFunc) (*Output, error) {
	ctx, span := otel.Tracer("StreetGrouping").Start(ctx, "Run")
	defer span.End()

	var exact, nearby []models.PlaceResult
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		exact, err = fetch(egCtx, g.exactRadius)
		return err
	})
	eg.Go(func() error {
		var err error
		nearby, err = fetch(egCtx, g.nearbyRadius)
		return err
	})
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dual radius fetch failed")
		return nil, err
	}

	// The provider radius is a bias, not a boundary. Anything past the
	// nearby radius is out of scope for a street query and dropped here.
	anchor := orb.Point{center.Lng, center.Lat}
	seen := make(map[string]bool)
	var union, exactGroup, nearbyGroup []models.PlaceResult
	for _, r := range append(exact, nearby...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		d := geo.DistanceHaversine(anchor, orb.Point{r.Location.Lng, r.Location.Lat})
		if d > float64(g.nearbyRadius) {
			continue
		}
		r.DistanceMeters = &d
		if d <= float64(g.exactRadius) {
			r.GroupKind = models.GroupExact
			exactGroup = append(exactGroup, r)
		} else {
			r.GroupKind = models.GroupNearby
			nearbyGroup = append(nearbyGroup, r)
		}
		union = append(union, r)
	}
	sortByDistance(exactGroup)
	sortByDistance(nearbyGroup)

	out := &Output{Results: union}
	if len(exactGroup) > 0 && len(exactGroup) >= g.minExact {
		out.Groups = append(out.Groups, models.ResultGroup{
			Kind:         models.GroupExact,
			Label:        groupLabel(models.GroupExact, uiLang),
			RadiusMeters: g.exactRadius,
			Results:      exactGroup,
		})
	}
	if len(nearbyGroup) > 0 && len(nearbyGroup) >= g.minNearby {
		out.Groups = append(out.Groups, models.ResultGroup{
			Kind:         models.GroupNearby,
			Label:        groupLabel(models.GroupNearby, uiLang),
			RadiusMeters: g.nearbyRadius,
			Results:      nearbyGroup,
		})
	}

	span.SetAttributes(
		attribute.Int("results.exact", len(exactGroup)),
		attribute.Int("results.nearby", len(nearbyGroup)),
	)
	span.SetStatus(codes.Ok, "ok")
	return out, nil
}

func sortByDistance(results []models.PlaceResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].DistanceMeters < *results[j].DistanceMeters
	})
}

var groupLabels = map[models.Language]map[models.GroupKind]string{
	models.LangHebrew:  {models.GroupExact: "ברחוב עצמו", models.GroupNearby: "בסביבה הקרובה"},
	models.LangEnglish: {models.GroupExact: "On the street", models.GroupNearby: "Close by"},
	models.LangRussian: {models.GroupExact: "На самой улице", models.GroupNearby: "Поблизости"},
	models.LangArabic:  {models.GroupExact: "في الشارع نفسه", models.GroupNearby: "بالقرب"},
	models.LangFrench:  {models.GroupExact: "Dans la rue", models.GroupNearby: "À proximité"},
	models.LangSpanish: {models.GroupExact: "En la calle", models.GroupNearby: "Muy cerca"},
}

func groupLabel(kind models.GroupKind, lang models.Language) string {
	if labels, ok := groupLabels[lang]; ok {
		return labels[kind]
	}
	return groupLabels[models.LangEnglish][kind]
}
