package plan

import (
	"strings"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// Landmark is one canonical registry entry. KnownLatLng, when set, lets the
// mapper skip both the LLM call and the geocode round trip.
type Landmark struct {
	ID          string
	PrimaryName string
	Aliases     []string
	KnownLatLng *models.LatLng
}

var landmarkRegistry = []Landmark{
	{
		ID:          "dizengoff_center",
		PrimaryName: "Dizengoff Center",
		Aliases: []string{
			"dizengoff center", "dizengoff", "דיזנגוף סנטר", "דיזנגוף",
			"дизенгоф центр", "дизенгоф", "مركز ديزنغوف", "centre dizengoff", "centro dizengoff",
		},
		KnownLatLng: &models.LatLng{Lat: 32.0750, Lng: 34.7750},
	},
	{
		ID:          "azrieli_center",
		PrimaryName: "Azrieli Center",
		Aliases: []string{
			"azrieli center", "azrieli", "עזריאלי", "מגדלי עזריאלי",
			"азриэли", "مركز عزرائيلي", "centre azrieli", "centro azrieli",
		},
		KnownLatLng: &models.LatLng{Lat: 32.0740, Lng: 34.7915},
	},
	{
		ID:          "sarona_market",
		PrimaryName: "Sarona Market",
		Aliases: []string{
			"sarona market", "sarona", "שרונה מרקט", "שרונה",
			"сарона маркет", "сарона", "سوق سارونا", "marché sarona", "mercado sarona",
		},
		KnownLatLng: &models.LatLng{Lat: 32.0719, Lng: 34.7876},
	},
	{
		ID:          "carmel_market",
		PrimaryName: "Carmel Market",
		Aliases: []string{
			"carmel market", "shuk hacarmel", "שוק הכרמל", "הכרמל",
			"рынок кармель", "кармель", "سوق الكرمل", "marché carmel", "mercado carmel",
		},
		KnownLatLng: &models.LatLng{Lat: 32.0683, Lng: 34.7688},
	},
	{
		ID:          "mahane_yehuda",
		PrimaryName: "Mahane Yehuda Market",
		Aliases: []string{
			"mahane yehuda", "machane yehuda", "the shuk", "מחנה יהודה", "השוק",
			"махане йехуда", "سوق محانيه يهودا", "marché mahane yehuda", "mercado mahane yehuda",
		},
		KnownLatLng: &models.LatLng{Lat: 31.7857, Lng: 35.2124},
	},
	{
		ID:          "tel_aviv_port",
		PrimaryName: "Tel Aviv Port",
		Aliases: []string{
			"tel aviv port", "namal tel aviv", "the port", "נמל תל אביב", "הנמל",
			"порт тель-авива", "ميناء تل أبيب", "port de tel aviv", "puerto de tel aviv",
		},
		KnownLatLng: &models.LatLng{Lat: 32.0966, Lng: 34.7738},
	},
	{
		ID:          "rothschild_blvd",
		PrimaryName: "Rothschild Boulevard",
		Aliases: []string{
			"rothschild boulevard", "rothschild", "שדרות רוטשילד", "רוטשילד",
			"бульвар ротшильд", "ротшильд", "جادة روتشيلد", "boulevard rothschild", "bulevar rothschild",
		},
		KnownLatLng: &models.LatLng{Lat: 32.0633, Lng: 34.7722},
	},
	{
		ID:          "old_city_jerusalem",
		PrimaryName: "Old City of Jerusalem",
		Aliases: []string{
			"old city jerusalem", "old city", "העיר העתיקה", "העיר העתיקה ירושלים",
			"старый город", "البلدة القديمة", "vieille ville de jérusalem", "ciudad vieja de jerusalén",
		},
		KnownLatLng: &models.LatLng{Lat: 31.7767, Lng: 35.2345},
	},
	{
		ID:          "western_wall",
		PrimaryName: "Western Wall",
		Aliases: []string{
			"western wall", "wailing wall", "kotel", "הכותל", "הכותל המערבי",
			"стена плача", "حائط البراق", "mur des lamentations", "muro de los lamentos",
		},
		KnownLatLng: &models.LatLng{Lat: 31.7767, Lng: 35.2343},
	},
	{
		ID:          "bahai_gardens",
		PrimaryName: "Bahai Gardens",
		Aliases: []string{
			"bahai gardens", "bahai", "הגנים הבהאיים", "бахайские сады",
			"الحدائق البهائية", "jardins bahai", "jardines bahai",
		},
		KnownLatLng: &models.LatLng{Lat: 32.8140, Lng: 34.9870},
	},
	{
		ID:          "jaffa_flea_market",
		PrimaryName: "Jaffa Flea Market",
		Aliases: []string{
			"jaffa flea market", "flea market", "shuk hapishpeshim", "שוק הפשפשים",
			"блошиный рынок яффо", "سوق البراغيث يافا", "marché aux puces de jaffa", "mercado de pulgas de jaffa",
		},
		KnownLatLng: &models.LatLng{Lat: 32.0504, Lng: 34.7522},
	},
}

var landmarkAliasIndex = buildLandmarkIndex()

func buildLandmarkIndex() map[string]*Landmark {
	idx := make(map[string]*Landmark)
	for i := range landmarkRegistry {
		lm := &landmarkRegistry[i]
		idx[strings.ToLower(lm.PrimaryName)] = lm
		for _, alias := range lm.Aliases {
			idx[strings.ToLower(alias)] = lm
		}
	}
	return idx
}

// LookupLandmark resolves free text against the registry.
func LookupLandmark(text string) (*Landmark, bool) {
	lm, ok := landmarkAliasIndex[strings.ToLower(strings.TrimSpace(text))]
	return lm, ok
}
