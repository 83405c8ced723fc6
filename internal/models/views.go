package models

// SlotSummary holds the availability of one resource
type SlotSummary struct {
	ResourceID     string `json:"resourceId"`
	Capacity       int    `json:"capacity"`
	AvailableSlots []int  `json:"availableSlots"`
	BookedCount    int    `json:"bookedCount"`
	AvailableCount int    `json:"availableCount"`
}

// RouteView is a bus price option as the UI expects it
type RouteView struct {
	ID       string  `json:"id"`
	Location string  `json:"location"`
	Amount   float64 `json:"amount"`
}

// BusView is one bus in the bus list
type BusView struct {
	ID                  string      `json:"id"`
	BusNumber           string      `json:"busNumber"`
	DriverName          string      `json:"driverName"`
	DriverNumber        string      `json:"driverNumber"`
	TotalSeats          int         `json:"totalSeats"`
	Time                string      `json:"time"`
	Routes              []RouteView `json:"routes"`
	AvailableSeats      []int       `json:"availableSeats"`
	BookedSeatsCount    int         `json:"bookedSeatsCount"`
	AvailableSeatsCount int         `json:"availableSeatsCount"`
}

// NewBusView builds the list entry of bus from its availability
func NewBusView(bus *Resource, summary *SlotSummary) BusView {
	routes := make([]RouteView, 0, len(bus.Prices))
	for _, p := range bus.Prices {
		routes = append(routes, RouteView{ID: p.ID, Location: p.Label, Amount: p.Amount})
	}

	return BusView{
		ID:                  bus.ID,
		BusNumber:           bus.Label,
		DriverName:          bus.Details.String("driverName"),
		DriverNumber:        bus.Details.String("driverNumber"),
		TotalSeats:          bus.Capacity,
		Time:                bus.Details.String("time"),
		Routes:              routes,
		AvailableSeats:      summary.AvailableSlots,
		BookedSeatsCount:    summary.BookedCount,
		AvailableSeatsCount: summary.AvailableCount,
	}
}

// RoomView is one hostel room with cot availability
type RoomView struct {
	ID                 string  `json:"id"`
	RoomNumber         string  `json:"roomNumber"`
	Floor              string  `json:"floor"`
	CotCount           int     `json:"cotCount"`
	Amount             float64 `json:"amount"`
	AvailableCots      []int   `json:"availableCots"`
	BookedCotsCount    int     `json:"bookedCotsCount"`
	AvailableCotsCount int     `json:"availableCotsCount"`
}

// NewRoomView builds the view of room from its availability
func NewRoomView(room *Resource, summary *SlotSummary) RoomView {
	var amount float64
	if p, ok := room.DefaultPrice(); ok {
		amount = p.Amount
	}

	return RoomView{
		ID:                 room.ID,
		RoomNumber:         room.Label,
		Floor:              room.Details.String("floor"),
		CotCount:           room.Capacity,
		Amount:             amount,
		AvailableCots:      summary.AvailableSlots,
		BookedCotsCount:    summary.BookedCount,
		AvailableCotsCount: summary.AvailableCount,
	}
}

// HostelView is one hostel in the hostel list
type HostelView struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Address string       `json:"address"`
	Gender  HostelGender `json:"gender"`
	Rooms   []RoomView   `json:"rooms"`
}

// BusListResponse is returned by GET /bus/list
type BusListResponse struct {
	Buses     []BusView `json:"buses"`
	MyBooking *Booking  `json:"myBooking"`
}

// HostelListResponse is returned by GET /hostel/list
type HostelListResponse struct {
	Hostels   []HostelView `json:"hostels"`
	MyBooking *Booking     `json:"myBooking"`
}

// BookingListItem is one row of the admin booking lists
type BookingListItem struct {
	Booking
	ResourceLabel string `json:"resourceLabel" db:"resource_label"`
	ParentLabel   string `json:"parentLabel,omitempty" db:"parent_label"`
}

// BookingFilter narrows admin booking lists
type BookingFilter struct {
	SchoolID string
	Kind     ResourceKind
	Status   PaymentStatus
	Limit    int
	Offset   int
}
