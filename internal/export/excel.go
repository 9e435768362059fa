package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	reservationsSheet = "Reservations"
	occupancySheet    = "Occupancy"

	// MaxDays caps the occupancy grid width.
	MaxDays = 366
)

// Source is the read side of the store the export needs.
type Source interface {
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]*models.Room, error)
	GetReservationsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Reservation, error)
}

type Exporter struct {
	source Source
	dir    string
	logger *zerolog.Logger
}

func NewExporter(source Source, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{source: source, dir: dir, logger: logger}
}

// Build assembles a workbook for reservations touching [from, to]. The
// caller closes the file.
func (e *Exporter) Build(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	from, to = models.DateOnly(from), models.DateOnly(to)
	if to.Before(from) {
		return nil, domain.Invalid(domain.RuleInvalidDateRange, "range end is before range start")
	}
	if days := models.NightsBetween(from, to) + 1; days > MaxDays {
		return nil, domain.Invalid(domain.RuleInvalidDateRange, fmt.Sprintf("export range is limited to %d days", MaxDays))
	}

	rooms, err := e.source.ListRooms(ctx, models.RoomFilter{})
	if err != nil {
		return nil, fmt.Errorf("error getting rooms: %w", err)
	}
	reservations, err := e.source.GetReservationsByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("error getting reservations: %w", err)
	}

	f := excelize.NewFile()
	if err := writeReservations(f, rooms, reservations); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeOccupancy(f, from, to, rooms, reservations); err != nil {
		f.Close()
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

// Write streams the workbook to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := e.Build(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook into the export directory and returns its path.
func (e *Exporter) Save(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Build(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := FileName(from, to)
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func FileName(from, to time.Time) string {
	return fmt.Sprintf("reservations_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
}

var reservationHeaders = []string{
	"ID", "Room", "Customer ID", "Check In", "Check Out", "Nights", "Guests", "Total", "Status", "Notes", "Created At",
}

func writeReservations(f *excelize.File, rooms []*models.Room, reservations []*models.Reservation) error {
	index, err := f.NewSheet(reservationsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	codes := roomCodes(rooms)
	for i, header := range reservationHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reservationsSheet, cell, header)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(reservationHeaders), 1)
		_ = f.SetCellStyle(reservationsSheet, "A1", lastCell, headerStyle)
	}

	for i, r := range reservations {
		total, _ := r.TotalAmount.Float64()
		values := []interface{}{
			r.ID,
			codes[r.RoomID],
			r.CustomerID,
			r.CheckIn.Format(models.DateLayout),
			r.CheckOut.Format(models.DateLayout),
			r.Nights(),
			r.Guests,
			total,
			r.Status,
			r.Notes,
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(reservationsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing reservation %d: %w", r.ID, err)
		}
	}

	_ = f.SetColWidth(reservationsSheet, "A", "C", 12)
	_ = f.SetColWidth(reservationsSheet, "D", "I", 14)
	_ = f.SetColWidth(reservationsSheet, "J", "J", 30)
	_ = f.SetColWidth(reservationsSheet, "K", "K", 18)
	return nil
}

// writeOccupancy lays out rooms by nights. A cell lists the active
// reservations that occupy the room that night.
func writeOccupancy(f *excelize.File, from, to time.Time, rooms []*models.Room, reservations []*models.Reservation) error {
	if _, err := f.NewSheet(occupancySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	_ = f.SetCellValue(occupancySheet, "A1", fmt.Sprintf("Period: %s - %s", from.Format("02.01.2006"), to.Format("02.01.2006")))

	styles, err := newOccupancyStyles(f)
	if err != nil {
		return fmt.Errorf("error creating styles: %w", err)
	}

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	for i, d := range dates {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(occupancySheet, cell, d.Format("02.01"))
		_ = f.SetCellStyle(occupancySheet, cell, cell, styles.header)
	}

	byRoom := make(map[int64][]*models.Reservation)
	for _, r := range reservations {
		if models.IsActiveStatus(r.Status) {
			byRoom[r.RoomID] = append(byRoom[r.RoomID], r)
		}
	}

	for row, room := range rooms {
		nameCell, _ := excelize.CoordinatesToCellName(1, row+3)
		_ = f.SetCellValue(occupancySheet, nameCell, fmt.Sprintf("%s (%s, %d)", room.Code, models.CategoryDisplay(room.Category), room.Capacity))
		_ = f.SetCellStyle(occupancySheet, nameCell, nameCell, styles.room)

		for col, d := range dates {
			cell, _ := excelize.CoordinatesToCellName(col+2, row+3)
			night := occupying(byRoom[room.ID], d)
			_ = f.SetCellValue(occupancySheet, cell, occupancyText(night))
			_ = f.SetCellStyle(occupancySheet, cell, cell, styles.forNight(night))
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dates) + 1)
	_ = f.MergeCell(occupancySheet, "A1", lastCol+"1")
	_ = f.SetCellStyle(occupancySheet, "A1", "A1", styles.title)
	_ = f.SetColWidth(occupancySheet, "A", "A", 25)
	if len(dates) > 0 {
		firstDateCol, _ := excelize.ColumnNumberToName(2)
		_ = f.SetColWidth(occupancySheet, firstDateCol, lastCol, 16)
	}
	return nil
}

// occupying returns reservations whose stay includes night d.
func occupying(reservations []*models.Reservation, d time.Time) []*models.Reservation {
	var out []*models.Reservation
	for _, r := range reservations {
		if r.Overlaps(d, d.AddDate(0, 0, 1)) {
			out = append(out, r)
		}
	}
	return out
}

func occupancyText(night []*models.Reservation) string {
	if len(night) == 0 {
		return "Free"
	}
	lines := make([]string, 0, len(night))
	for _, r := range night {
		lines = append(lines, fmt.Sprintf("#%d %s (%d)", r.ID, r.Status, r.Guests))
	}
	return strings.Join(lines, "\n")
}

type occupancyStyles struct {
	title, header, room             int
	free, pending, confirmed, inUse int
}

func newOccupancyStyles(f *excelize.File) (*occupancyStyles, error) {
	cell := func(color string) (int, error) {
		return f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
		})
	}

	var s occupancyStyles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return nil, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return nil, err
	}
	if s.room, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return nil, err
	}
	if s.free, err = cell("#FFFFFF"); err != nil {
		return nil, err
	}
	if s.pending, err = cell("#FFEB9C"); err != nil {
		return nil, err
	}
	if s.confirmed, err = cell("#C6EFCE"); err != nil {
		return nil, err
	}
	if s.inUse, err = cell("#FFC7CE"); err != nil {
		return nil, err
	}
	return &s, nil
}

// forNight colors a cell by its most advanced reservation: checked in is
// red, pending yellow, confirmed green.
func (s *occupancyStyles) forNight(night []*models.Reservation) int {
	style := s.free
	for _, r := range night {
		switch r.Status {
		case models.StatusCheckedIn:
			return s.inUse
		case models.StatusPending:
			style = s.pending
		case models.StatusConfirmed:
			if style == s.free {
				style = s.confirmed
			}
		}
	}
	return style
}

func roomCodes(rooms []*models.Room) map[int64]string {
	codes := make(map[int64]string, len(rooms))
	for _, r := range rooms {
		codes[r.ID] = r.Code
	}
	return codes
}
