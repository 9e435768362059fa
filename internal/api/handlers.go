package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"guestms/internal/export"
	"guestms/internal/models"

	"github.com/shopspring/decimal"
)

type reservationView struct {
	ID          int64  `json:"id"`
	RoomID      int64  `json:"room_id"`
	CustomerID  int64  `json:"customer_id"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	Nights      int    `json:"nights"`
	Guests      int    `json:"guests"`
	TotalAmount string `json:"total_amount"`
	Notes       string `json:"notes"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toReservationView(r *models.Reservation) reservationView {
	return reservationView{
		ID:          r.ID,
		RoomID:      r.RoomID,
		CustomerID:  r.CustomerID,
		CheckIn:     r.CheckIn.Format(models.DateLayout),
		CheckOut:    r.CheckOut.Format(models.DateLayout),
		Nights:      r.Nights(),
		Guests:      r.Guests,
		TotalAmount: r.TotalAmount.StringFixed(2),
		Notes:       r.Notes,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toReservationViews(list []*models.Reservation) []reservationView {
	out := make([]reservationView, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationView(r))
	}
	return out
}

type createReservationRequest struct {
	RoomID     int64  `json:"room_id"`
	CustomerID int64  `json:"customer_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Guests     int    `json:"guests"`
	Notes      string `json:"notes"`
}

type updateStatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		writeError(w, http.StatusBadRequest, name+" is required")
		return time.Time{}, false
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+"; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func roomFilterFromQuery(w http.ResponseWriter, r *http.Request) (models.RoomFilter, bool) {
	q := r.URL.Query()
	filter := models.RoomFilter{
		AvailableOnly: q.Get("available") == "true",
		ActiveOnly:    q.Get("active") == "true",
		Category:      strings.ToUpper(strings.TrimSpace(q.Get("category"))),
	}
	for name, dst := range map[string]**decimal.Decimal{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name)
			return filter, false
		}
		*dst = &v
	}
	return filter, true
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	filter, ok := roomFilterFromQuery(w, r)
	if !ok {
		return
	}
	rooms, err := s.svc.Rooms.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *HTTPServer) handleSearchRooms(w http.ResponseWriter, r *http.Request) {
	filter, ok := roomFilterFromQuery(w, r)
	if !ok {
		return
	}
	rooms, err := s.svc.Rooms.Search(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var in models.RoomInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	room, err := s.svc.Rooms.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	room, err := s.svc.Rooms.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in models.RoomInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	room, err := s.svc.Rooms.Update(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Rooms.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.svc.Customers.Register(r.Context(), &c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *HTTPServer) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.svc.Customers.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	customerID, ok := queryInt64(w, r, "customer_id")
	if !ok {
		return
	}
	roomID, ok := queryInt64(w, r, "room_id")
	if !ok {
		return
	}
	list, err := s.svc.Reservations.List(r.Context(), models.ReservationFilter{
		CustomerID: customerID,
		RoomID:     roomID,
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": toReservationViews(list)})
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var body createReservationRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	checkIn, err := models.ParseDate(strings.TrimSpace(body.CheckIn))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in; expected YYYY-MM-DD")
		return
	}
	checkOut, err := models.ParseDate(strings.TrimSpace(body.CheckOut))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_out; expected YYYY-MM-DD")
		return
	}

	res, err := s.svc.Reservations.Create(r.Context(), models.NewReservation{
		RoomID:     body.RoomID,
		CustomerID: body.CustomerID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     body.Guests,
		Notes:      body.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationView(res))
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Reservations.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationView(res))
}

func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Reservations.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body updateStatusRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.svc.Reservations.UpdateStatus(r.Context(), id, models.ReservationUpdate{
		Status: strings.TrimSpace(body.Status),
		Notes:  body.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationView(res))
}

func (s *HTTPServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	updated, err := s.svc.Reservations.ReconcileAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}
	from, ok := queryDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return
	}

	f, err := s.svc.Exporter.Build(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(from, to)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Msg("Failed to stream export")
	}
}
