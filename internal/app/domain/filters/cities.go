package filters

import "strings"

// cityAliases maps canonical city keys to their known spellings across
// Hebrew, English and Arabic. The table is read-only at runtime; new cities
// learned through geocoding land in the session's validated-cities cache,
// not here.
var cityAliases = map[string][]string{
	"tel_aviv":      {"tel aviv", "tel-aviv", "tel aviv-yafo", "תל אביב", "תל אביב יפו", "تل أبيب"},
	"jerusalem":     {"jerusalem", "ירושלים", "القدس", "أورشليم"},
	"haifa":         {"haifa", "חיפה", "حيفا"},
	"beer_sheva":    {"beer sheva", "beersheba", "be'er sheva", "באר שבע", "بئر السبع"},
	"rishon_lezion": {"rishon lezion", "rishon letzion", "ראשון לציון", "ريشون لتسيون"},
	"petah_tikva":   {"petah tikva", "petach tikva", "פתח תקווה", "פתח תקוה", "بيتح تكفا"},
	"ashdod":        {"ashdod", "אשדוד", "أشدود"},
	"netanya":       {"netanya", "נתניה", "نتانيا"},
	"holon":         {"holon", "חולון", "حولون"},
	"bnei_brak":     {"bnei brak", "בני ברק", "بني براك"},
	"ramat_gan":     {"ramat gan", "רמת גן", "رمات غان"},
	"bat_yam":       {"bat yam", "בת ים", "بات يام"},
	"ashkelon":      {"ashkelon", "אשקלון", "عسقلان"},
	"rehovot":       {"rehovot", "רחובות", "رحوفوت"},
	"herzliya":      {"herzliya", "herzlia", "הרצליה", "هرتسليا"},
	"kfar_saba":     {"kfar saba", "כפר סבא", "كفار سابا"},
	"raanana":       {"raanana", "ra'anana", "רעננה", "رعنانا"},
	"modiin":        {"modiin", "modi'in", "מודיעין", "موديعين"},
	"hadera":        {"hadera", "חדרה", "الخضيرة"},
	"nazareth":      {"nazareth", "נצרת", "الناصرة"},
	"lod":           {"lod", "לוד", "اللد"},
	"ramla":         {"ramla", "רמלה", "الرملة"},
	"givatayim":     {"givatayim", "גבעתיים", "جفعاتايم"},
	"hod_hasharon":  {"hod hasharon", "הוד השרון", "هود هشارون"},
	"rosh_haayin":   {"rosh haayin", "ראש העין", "رأس العين"},
	"kiryat_gat":    {"kiryat gat", "קריית גת", "كريات جات"},
	"kiryat_ono":    {"kiryat ono", "קריית אונו", "كريات أونو"},
	"eilat":         {"eilat", "אילת", "إيلات"},
	"tiberias":      {"tiberias", "טבריה", "طبريا"},
	"acre":          {"acre", "akko", "עכו", "عكا"},
	"jaffa":         {"jaffa", "yafo", "יפו", "يافا"},
	"beit_shemesh":  {"beit shemesh", "בית שמש", "بيت شيمش"},
	"nahariya":      {"nahariya", "נהריה", "نهاريا"},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]string {
	idx := make(map[string]string)
	for key, aliases := range cityAliases {
		for _, alias := range aliases {
			idx[alias] = key
		}
	}
	return idx
}

// CanonicalCity resolves a free-text city name to its canonical key.
func CanonicalCity(text string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	key, ok := aliasIndex[normalized]
	return key, ok
}

// CityComparison is the tri-state outcome of comparing a result's city
// against the requested one.
type CityComparison int

const (
	// CitySame: both resolve to the same canonical city.
	CitySame CityComparison = iota
	// CityDifferent: both resolve, to different canonical cities.
	CityDifferent
	// CityUnknown: at least one side is not in the table. Unknown gets the
	// benefit of the doubt and the result is kept.
	CityUnknown
)

// CompareCities classifies whether resultCity is a known different city from
// requestedCity.
func CompareCities(requestedCity, resultCity string) CityComparison {
	reqKey, reqOK := CanonicalCity(requestedCity)
	resKey, resOK := CanonicalCity(resultCity)
	if !reqOK || !resOK {
		return CityUnknown
	}
	if reqKey == resKey {
		return CitySame
	}
	return CityDifferent
}
