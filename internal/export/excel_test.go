package export

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"guestms/internal/domain"
	"guestms/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	rooms        []*models.Room
	reservations []*models.Reservation
	err          error
}

func (f *fakeSource) ListRooms(context.Context, models.RoomFilter) ([]*models.Room, error) {
	return f.rooms, f.err
}

func (f *fakeSource) GetReservationsByDateRange(context.Context, time.Time, time.Time) ([]*models.Reservation, error) {
	return f.reservations, f.err
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func newFixture() *fakeSource {
	return &fakeSource{
		rooms: []*models.Room{
			{ID: 1, Code: "101", Category: models.CategoryGeneral, Capacity: 2},
			{ID: 2, Code: "201", Category: models.CategorySuite, Capacity: 4},
		},
		reservations: []*models.Reservation{
			{ID: 10, RoomID: 1, CustomerID: 5, CheckIn: day(1), CheckOut: day(3), Guests: 2, TotalAmount: decimal.NewFromInt(200), Status: models.StatusConfirmed},
			{ID: 11, RoomID: 2, CustomerID: 6, CheckIn: day(2), CheckOut: day(3), Guests: 3, TotalAmount: decimal.RequireFromString("99.50"), Status: models.StatusCheckedIn},
			{ID: 12, RoomID: 1, CustomerID: 7, CheckIn: day(3), CheckOut: day(4), Guests: 1, TotalAmount: decimal.NewFromInt(100), Status: models.StatusCanceled},
		},
	}
}

func newTestExporter(src Source, dir string) *Exporter {
	logger := zerolog.Nop()
	return NewExporter(src, dir, &logger)
}

func TestBuild_ReservationsSheet(t *testing.T) {
	e := newTestExporter(newFixture(), t.TempDir())

	f, err := e.Build(context.Background(), day(1), day(3))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{reservationsSheet, occupancySheet}, f.GetSheetList())

	rows, err := f.GetRows(reservationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"10", "101", "5", "2024-01-01", "2024-01-03", "2", "2", "200", "confirmed"}, rows[1][:9])
	assert.Equal(t, "201", rows[2][1])
	assert.Equal(t, "99.5", rows[2][7])
}

func TestBuild_OccupancyGrid(t *testing.T) {
	e := newTestExporter(newFixture(), t.TempDir())

	f, err := e.Build(context.Background(), day(1), day(3))
	require.NoError(t, err)
	defer f.Close()

	title, _ := f.GetCellValue(occupancySheet, "A1")
	assert.Equal(t, "Period: 01.01.2024 - 03.01.2024", title)

	header, _ := f.GetCellValue(occupancySheet, "D2")
	assert.Equal(t, "03.01", header)

	room, _ := f.GetCellValue(occupancySheet, "A3")
	assert.Equal(t, "101 (General, 2)", room)

	// room 101: nights of Jan 1 and 2 taken, Jan 3 only has a canceled stay
	v, _ := f.GetCellValue(occupancySheet, "B3")
	assert.Equal(t, "#10 confirmed (2)", v)
	v, _ = f.GetCellValue(occupancySheet, "C3")
	assert.Equal(t, "#10 confirmed (2)", v)
	v, _ = f.GetCellValue(occupancySheet, "D3")
	assert.Equal(t, "Free", v)

	// room 201: checked in on Jan 2 only
	v, _ = f.GetCellValue(occupancySheet, "B4")
	assert.Equal(t, "Free", v)
	v, _ = f.GetCellValue(occupancySheet, "C4")
	assert.Equal(t, "#11 checked_in (3)", v)

	free, _ := f.GetCellStyle(occupancySheet, "B4")
	busy, _ := f.GetCellStyle(occupancySheet, "C4")
	confirmed, _ := f.GetCellStyle(occupancySheet, "B3")
	assert.NotEqual(t, free, busy)
	assert.NotEqual(t, busy, confirmed)
}

func TestForNight(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	s, err := newOccupancyStyles(f)
	require.NoError(t, err)

	assert.Equal(t, s.free, s.forNight(nil))
	assert.Equal(t, s.confirmed, s.forNight([]*models.Reservation{{Status: models.StatusConfirmed}}))
	assert.Equal(t, s.pending, s.forNight([]*models.Reservation{{Status: models.StatusConfirmed}, {Status: models.StatusPending}}))
	assert.Equal(t, s.inUse, s.forNight([]*models.Reservation{{Status: models.StatusPending}, {Status: models.StatusCheckedIn}}))
}

func TestBuild_Errors(t *testing.T) {
	e := newTestExporter(newFixture(), t.TempDir())
	ctx := context.Background()

	_, err := e.Build(ctx, day(5), day(1))
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	_, err = e.Build(ctx, day(1), day(1).AddDate(2, 0, 0))
	assert.ErrorIs(t, err, domain.ErrValidation)

	broken := newTestExporter(&fakeSource{err: errors.New("db closed")}, t.TempDir())
	_, err = broken.Build(ctx, day(1), day(2))
	assert.ErrorContains(t, err, "db closed")
}

func TestSaveAndWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e := newTestExporter(newFixture(), dir)
	ctx := context.Background()

	path, err := e.Save(ctx, day(1), day(3))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reservations_2024-01-01_to_2024-01-03.xlsx"), path)
	assert.FileExists(t, path)

	var buf bytes.Buffer
	require.NoError(t, e.Write(ctx, &buf, day(1), day(3)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	v, _ := f.GetCellValue(reservationsSheet, "A2")
	assert.Equal(t, "10", v)
}
