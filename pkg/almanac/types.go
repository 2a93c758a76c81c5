package almanac

// PlanetPosition is one body's position for a given day.
type PlanetPosition struct {
	Planet     string  `json:"planet"`
	Sign       string  `json:"sign"`
	Degree     float64 `json:"degree"`
	Retrograde bool    `json:"retrograde"`
}

// DailyContext is the astronomical context for one calendar day.
type DailyContext struct {
	Date      string           `json:"date"` // YYYY-MM-DD
	MoonPhase string           `json:"moon_phase"`
	Season    string           `json:"season"`
	Positions []PlanetPosition `json:"positions"`
}

// Headline is one news item used to flavor the day's content.
type Headline struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url"`
}
