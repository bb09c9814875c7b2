package domain

// Observation is one day's value of one element at one station. Only values
// that passed the quality filter are represented.
type Observation struct {
	StationID string  `json:"station_id"`
	Year      int     `json:"year"`
	Month     int     `json:"month"`
	Day       int     `json:"day"`
	Element   Element `json:"element"`
	Value     int     `json:"value"`
}

type monthKey struct {
	year    int
	month   int
	element Element
}

type calendarKey struct {
	month   int
	element Element
}

// ObservationSet is the filtered observations of one station. It is immutable
// after construction; accessors return copies.
type ObservationSet struct {
	stationID string
	obs       []Observation
	byMonth   map[monthKey][]int
	byCal     map[calendarKey][]int
}

// NewObservationSet indexes obs for stationID. The slice is copied.
func NewObservationSet(stationID string, obs []Observation) *ObservationSet {
	s := &ObservationSet{
		stationID: stationID,
		obs:       make([]Observation, len(obs)),
		byMonth:   make(map[monthKey][]int),
		byCal:     make(map[calendarKey][]int),
	}
	copy(s.obs, obs)
	for _, o := range s.obs {
		mk := monthKey{year: o.Year, month: o.Month, element: o.Element}
		s.byMonth[mk] = append(s.byMonth[mk], o.Value)
		ck := calendarKey{month: o.Month, element: o.Element}
		s.byCal[ck] = append(s.byCal[ck], o.Value)
	}
	return s
}

// StationID returns the station the set belongs to.
func (s *ObservationSet) StationID() string { return s.stationID }

// Len returns the number of observations.
func (s *ObservationSet) Len() int { return len(s.obs) }

// Observations returns a copy of every observation in file order.
func (s *ObservationSet) Observations() []Observation {
	out := make([]Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

// Count returns the number of observations for one year, month and element.
func (s *ObservationSet) Count(year, month int, el Element) int {
	return len(s.byMonth[monthKey{year: year, month: month, element: el}])
}

// Values returns the values for one year, month and element.
func (s *ObservationSet) Values(year, month int, el Element) []int {
	return cloneInts(s.byMonth[monthKey{year: year, month: month, element: el}])
}

// Climatology returns the values for a calendar month and element across every year.
func (s *ObservationSet) Climatology(month int, el Element) []int {
	return cloneInts(s.byCal[calendarKey{month: month, element: el}])
}

func cloneInts(v []int) []int {
	if len(v) == 0 {
		return nil
	}
	out := make([]int, len(v))
	copy(out, v)
	return out
}
