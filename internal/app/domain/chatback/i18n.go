package chatback

import (
	"fmt"

	"github.com/FACorreiaa/loci-food-search/internal/app/models"
)

// forbiddenPhrases are substrings the assistant message must never contain,
// per language. The English list also guards technical vocabulary that leaks
// from prompts regardless of the target language.
var forbiddenPhrases = map[models.Language][]string{
	models.LangEnglish: {
		"no results", "nothing found", "try again", "confidence", "api",
		"data unavailable", "llm", "fallback",
	},
	models.LangHebrew: {
		"אין תוצאות", "לא נמצא", "לא נמצאו", "נסה שוב", "נסי שוב", "רמת ביטחון",
	},
	models.LangRussian: {
		"нет результатов", "ничего не найдено", "попробуйте еще раз", "попробуйте снова",
	},
	models.LangArabic: {
		"لا توجد نتائج", "لم يتم العثور", "حاول مرة أخرى",
	},
	models.LangFrench: {
		"aucun résultat", "rien trouvé", "réessayez",
	},
	models.LangSpanish: {
		"sin resultados", "no se encontró", "inténtalo de nuevo",
	},
}

// templates are the deterministic per-scenario messages used when the LLM is
// unavailable or keeps violating the phrase rules. Each accepts the result
// count where relevant.
var templates = map[models.Language]map[models.Scenario]string{
	models.LangHebrew: {
		models.ScenarioExactMatch:         "מצאתי %d מקומות שמתאימים לחיפוש שלך.",
		models.ScenarioLowConfidence:      "הנה %d מקומות שאולי יתאימו, שווה לדייק את הבקשה.",
		models.ScenarioMissingQuery:       "ספרו לי מה בא לכם לאכול ואיפה.",
		models.ScenarioMissingLocation:    "כדי לחפש לידך, שתפו מיקום או כתבו שם של עיר.",
		models.ScenarioZeroNearbyExists:   "באזור הזה לא הצלחתי לאתר התאמה, אפשר להרחיב את הרדיוס.",
		models.ScenarioZeroDifferentCity:  "יש מקומות מתאימים בעיר סמוכה, רוצים שאחפש שם?",
		models.ScenarioFewClosingSoon:     "מצאתי %d מקומות, חלקם נסגרים בקרוב.",
		models.ScenarioFewAllClosed:       "מצאתי %d מקומות אבל כולם סגורים כרגע.",
		models.ScenarioManyAllClosed:      "יש %d מקומות מתאימים אבל כולם סגורים עכשיו.",
		models.ScenarioClarifyNeeded:      "אפשר לדייק? למשל סוג אוכל ואזור.",
		models.ScenarioRepeatUnsuccessful: "בואו ננסה כיוון אחר, אולי ניסוח שונה או אזור אחר.",
	},
	models.LangEnglish: {
		models.ScenarioExactMatch:         "Found %d places matching your search.",
		models.ScenarioLowConfidence:      "Here are %d places that may fit, feel free to be more specific.",
		models.ScenarioMissingQuery:       "Tell me what you feel like eating and where.",
		models.ScenarioMissingLocation:    "To search around you, share your location or name a city.",
		models.ScenarioZeroNearbyExists:   "I could not match anything in that area, widening the radius may help.",
		models.ScenarioZeroDifferentCity:  "There are matching places in a nearby city, want me to look there?",
		models.ScenarioFewClosingSoon:     "Found %d places, some are closing soon.",
		models.ScenarioFewAllClosed:       "Found %d places but all of them are closed right now.",
		models.ScenarioManyAllClosed:      "There are %d matching places but all are closed at the moment.",
		models.ScenarioClarifyNeeded:      "Could you narrow it down? A food type and an area helps.",
		models.ScenarioRepeatUnsuccessful: "Let's try a different angle, maybe other words or another area.",
	},
	models.LangRussian: {
		models.ScenarioExactMatch:         "Нашлось %d подходящих мест.",
		models.ScenarioLowConfidence:      "Вот %d мест, которые могут подойти, уточните запрос при желании.",
		models.ScenarioMissingQuery:       "Расскажите, что хотите поесть и где.",
		models.ScenarioMissingLocation:    "Чтобы искать рядом, поделитесь геолокацией или укажите город.",
		models.ScenarioZeroNearbyExists:   "В этом районе подобрать не удалось, можно расширить радиус.",
		models.ScenarioZeroDifferentCity:  "Подходящие места есть в соседнем городе, поискать там?",
		models.ScenarioFewClosingSoon:     "Нашлось %d мест, некоторые скоро закрываются.",
		models.ScenarioFewAllClosed:       "Нашлось %d мест, но сейчас все закрыты.",
		models.ScenarioManyAllClosed:      "Есть %d подходящих мест, но все сейчас закрыты.",
		models.ScenarioClarifyNeeded:      "Уточните, пожалуйста: какая кухня и какой район?",
		models.ScenarioRepeatUnsuccessful: "Давайте зайдем с другой стороны: другие слова или другой район.",
	},
	models.LangArabic: {
		models.ScenarioExactMatch:         "وجدت %d أماكن تناسب بحثك.",
		models.ScenarioLowConfidence:      "إليك %d أماكن قد تناسبك، يمكنك توضيح طلبك أكثر.",
		models.ScenarioMissingQuery:       "أخبرني ماذا تريد أن تأكل وأين.",
		models.ScenarioMissingLocation:    "للبحث بالقرب منك، شارك موقعك أو اذكر اسم مدينة.",
		models.ScenarioZeroNearbyExists:   "لم أتمكن من إيجاد تطابق في هذه المنطقة، توسيع النطاق قد يساعد.",
		models.ScenarioZeroDifferentCity:  "توجد أماكن مناسبة في مدينة قريبة، هل أبحث هناك؟",
		models.ScenarioFewClosingSoon:     "وجدت %d أماكن، بعضها يغلق قريباً.",
		models.ScenarioFewAllClosed:       "وجدت %d أماكن لكنها مغلقة الآن.",
		models.ScenarioManyAllClosed:      "هناك %d أماكن مناسبة لكنها جميعاً مغلقة الآن.",
		models.ScenarioClarifyNeeded:      "هل يمكنك التوضيح؟ نوع الطعام والمنطقة يساعدان.",
		models.ScenarioRepeatUnsuccessful: "لنجرب اتجاهاً آخر، صياغة مختلفة أو منطقة أخرى.",
	},
	models.LangFrench: {
		models.ScenarioExactMatch:         "J'ai trouvé %d adresses qui correspondent.",
		models.ScenarioLowConfidence:      "Voici %d adresses possibles, n'hésitez pas à préciser.",
		models.ScenarioMissingQuery:       "Dites-moi ce que vous voulez manger et où.",
		models.ScenarioMissingLocation:    "Pour chercher autour de vous, partagez votre position ou nommez une ville.",
		models.ScenarioZeroNearbyExists:   "Pas de correspondance dans cette zone, on peut élargir le rayon.",
		models.ScenarioZeroDifferentCity:  "Des adresses existent dans une ville voisine, je regarde là-bas ?",
		models.ScenarioFewClosingSoon:     "J'ai trouvé %d adresses, certaines ferment bientôt.",
		models.ScenarioFewAllClosed:       "J'ai trouvé %d adresses mais toutes sont fermées actuellement.",
		models.ScenarioManyAllClosed:      "Il y a %d adresses correspondantes mais toutes sont fermées.",
		models.ScenarioClarifyNeeded:      "Pouvez-vous préciser ? Un type de cuisine et un quartier aident.",
		models.ScenarioRepeatUnsuccessful: "Essayons autrement, d'autres mots ou un autre quartier.",
	},
	models.LangSpanish: {
		models.ScenarioExactMatch:         "Encontré %d lugares que encajan con tu búsqueda.",
		models.ScenarioLowConfidence:      "Aquí hay %d lugares que podrían encajar, puedes afinar la búsqueda.",
		models.ScenarioMissingQuery:       "Cuéntame qué te apetece comer y dónde.",
		models.ScenarioMissingLocation:    "Para buscar cerca de ti, comparte tu ubicación o escribe una ciudad.",
		models.ScenarioZeroNearbyExists:   "No encontré coincidencias en esa zona, ampliar el radio puede ayudar.",
		models.ScenarioZeroDifferentCity:  "Hay lugares que encajan en una ciudad cercana, ¿busco allí?",
		models.ScenarioFewClosingSoon:     "Encontré %d lugares, algunos cierran pronto.",
		models.ScenarioFewAllClosed:       "Encontré %d lugares pero todos están cerrados ahora.",
		models.ScenarioManyAllClosed:      "Hay %d lugares que encajan pero todos están cerrados ahora.",
		models.ScenarioClarifyNeeded:      "¿Puedes concretar? Un tipo de comida y una zona ayudan.",
		models.ScenarioRepeatUnsuccessful: "Probemos otro enfoque, otras palabras u otra zona.",
	},
}

// nearbyOnlyTemplates cover the street case: nothing on the exact stretch,
// but matches exist close by and their count must be stated.
var nearbyOnlyTemplates = map[models.Language]string{
	models.LangHebrew:  "ממש ברחוב עצמו אין התאמה, אבל יש %d מקומות קרובים מאוד.",
	models.LangEnglish: "Nothing on that exact stretch, but %d places are close by.",
	models.LangRussian: "Прямо на этой улице совпадений нет, но рядом есть %d мест.",
	models.LangArabic:  "لا يوجد تطابق في الشارع نفسه، لكن هناك %d أماكن قريبة جداً.",
	models.LangFrench:  "Rien dans cette rue précise, mais %d adresses sont toutes proches.",
	models.LangSpanish: "Nada en esa calle exacta, pero hay %d lugares muy cerca.",
}

// templateMessage renders the deterministic message for a scenario. Counts
// are injected only where the template asks for them.
func templateMessage(lang models.Language, plan *models.ResponsePlan) string {
	if plan.Scenario == models.ScenarioZeroNearbyExists && plan.Results.Total > 0 {
		tmpl, ok := nearbyOnlyTemplates[lang]
		if !ok {
			tmpl = nearbyOnlyTemplates[models.LangEnglish]
		}
		return fmt.Sprintf(tmpl, plan.Results.Total)
	}
	byScenario, ok := templates[lang]
	if !ok {
		byScenario = templates[models.LangEnglish]
	}
	tmpl, ok := byScenario[plan.Scenario]
	if !ok {
		tmpl = templates[models.LangEnglish][plan.Scenario]
	}
	if countsIn(tmpl) {
		return fmt.Sprintf(tmpl, plan.Results.Total)
	}
	return tmpl
}

func countsIn(tmpl string) bool {
	for i := 0; i+1 < len(tmpl); i++ {
		if tmpl[i] == '%' && tmpl[i+1] == 'd' {
			return true
		}
	}
	return false
}
