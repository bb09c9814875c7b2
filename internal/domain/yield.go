package domain

// Era is one segment of the piecewise technological trend.
type Era string

const (
	EraEarly  Era = "early"
	EraMiddle Era = "middle"
	EraModern Era = "modern"
)

// YieldRecord is one year's reported yield with its fitted trend.
type YieldRecord struct {
	Year      int     `json:"year" db:"year"`
	Value     float64 `json:"value" db:"value"` // bushels per acre
	Trend     float64 `json:"technological_trend" db:"technological_trend"`
	Departure float64 `json:"departure_from_trend" db:"departure_from_trend"` // (Value - Trend) / Trend
	Era       Era     `json:"era" db:"era"`
}

// Prediction is the leave-one-out result for one year.
type Prediction struct {
	Year               int     `json:"year" db:"year"`
	Actual             float64 `json:"actual" db:"actual"`
	Trend              float64 `json:"technological_trend" db:"technological_trend"`
	Departure          float64 `json:"departure_from_trend" db:"departure_from_trend"`
	PredictedDeparture float64 `json:"predicted_departure" db:"predicted_departure"`
	Predicted          float64 `json:"predicted" db:"predicted"`
	TrendError         float64 `json:"technological_trend_error" db:"technological_trend_error"` // Trend - Actual
	PredictionError    float64 `json:"prediction_error" db:"prediction_error"`                   // Actual - Predicted
	Improvement        float64 `json:"improvement" db:"improvement"`                             // |TrendError| - |PredictionError|
	Win                bool    `json:"win" db:"win"`
}
