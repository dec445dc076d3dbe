package scoring

import (
	"fmt"
	"sort"
)

// DefaultLocale is used by the package-level Evaluate.
const DefaultLocale = "en"

// Catalog holds the status texts and radar labels for one locale.
// HeartRate and BloodOxygen are format strings taking the measured value.
type Catalog struct {
	ExtremeStress    string
	ElevatedStress   string
	SleepDeprivation string
	HeartRate        string
	BloodOxygen      string
	AllClear         string

	AxisLabels map[Axis]string
}

var catalogs = map[string]Catalog{
	"en": {
		ExtremeStress:    "High risk: extreme stress level (above 80) detected. This significantly impairs your recovery.",
		ElevatedStress:   "Medium risk: elevated stress level (above 60) detected. Make time to relax.",
		SleepDeprivation: "Medium risk: sleep deprivation (under 6 hours) detected.",
		HeartRate:        "Medium risk: elevated resting heart rate of %d BPM detected.",
		BloodOxygen:      "High risk: low blood oxygen saturation of %d%% detected. This needs attention.",
		AllClear:         "Low risk: all vitals within optimal range.",
		AxisLabels: map[Axis]string{
			AxisCardio:      "Cardiovascular",
			AxisRespiration: "Respiration",
			AxisSleep:       "Sleep",
			AxisActivity:    "Activity",
			AxisStress:      "Stress",
		},
	},
	"de": {
		ExtremeStress:    "Status: Hohes Risiko. Extrem hohes Stresslevel (über 80) erkannt. Dies beeinträchtigt Ihre Erholung signifikant.",
		ElevatedStress:   "Status: Mittleres Risiko. Erhöhtes Stresslevel (über 60) festgestellt. Achten Sie auf Entspannung.",
		SleepDeprivation: "Status: Mittleres Risiko. Schlafmangel (unter 6 Std.) festgestellt.",
		HeartRate:        "Status: Mittleres Risiko. Ein erhöhter Ruhepuls von %d BPM wurde festgestellt.",
		BloodOxygen:      "Status: Hohes Risiko. Niedrige Blutsauerstoffsättigung (%d%%) erkannt. Dies erfordert Aufmerksamkeit.",
		AllClear:         "Status: Geringes Risiko. Alle Vitalwerte sind im optimalen Bereich.",
		AxisLabels: map[Axis]string{
			AxisCardio:      "Herz-Kreislauf",
			AxisRespiration: "Atmung",
			AxisSleep:       "Schlaf",
			AxisActivity:    "Aktivität",
			AxisStress:      "Stress",
		},
	},
}

// LookupCatalog returns the catalog registered for locale.
func LookupCatalog(locale string) (Catalog, error) {
	c, ok := catalogs[locale]
	if !ok {
		return Catalog{}, fmt.Errorf("scoring: unknown locale %q (available: %v)", locale, Locales())
	}
	return c, nil
}

// Locales lists the registered locales in sorted order.
func Locales() []string {
	out := make([]string, 0, len(catalogs))
	for k := range catalogs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Label returns the display label of axis a, falling back to the axis id.
func (c Catalog) Label(a Axis) string {
	if l, ok := c.AxisLabels[a]; ok {
		return l
	}
	return string(a)
}
