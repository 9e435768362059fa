package models

// Reservation statuses.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
	StatusCanceled   = "canceled"
)

// Room categories, stored as single-letter codes.
const (
	CategoryGeneral = "G"
	CategoryVIP     = "V"
	CategorySuite   = "S"
	CategoryDeluxe  = "D"
)

// DateLayout is the storage and wire format of check-in/check-out dates.
const DateLayout = "2006-01-02"

const (
	// DefaultRoomLockTTL время жизни блокировки номера при создании брони
	DefaultRoomLockTTL = 10 // секунд

	// DefaultRoomLockWait сколько ждать освобождения блокировки номера
	DefaultRoomLockWait = 5 // секунд

	// DefaultCreateRateLimit количество попыток бронирования на клиента в окне
	DefaultCreateRateLimit = 20

	// DefaultCreateRateWindow окно ограничения попыток бронирования
	DefaultCreateRateWindow = 60 // секунд

	// DefaultReconcileInterval период фоновой сверки флагов номеров
	DefaultReconcileInterval = 15 * 60 // секунд

	// NotifyQueueSize размер очереди уведомлений персонала
	NotifyQueueSize = 256
)

var statuses = []string{StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCanceled}

var categoryNames = map[string]string{
	CategoryGeneral: "General",
	CategoryVIP:     "VIP",
	CategorySuite:   "Suite",
	CategoryDeluxe:  "Deluxe",
}

// IsActiveStatus reports whether a reservation in this status holds its room.
// Every overlap and reconciliation decision goes through here.
func IsActiveStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusCheckedIn:
		return true
	}
	return false
}

// ActiveStatuses lists the statuses accepted by IsActiveStatus, for SQL IN clauses.
func ActiveStatuses() []string {
	var out []string
	for _, s := range statuses {
		if IsActiveStatus(s) {
			out = append(out, s)
		}
	}
	return out
}

// IsTerminalStatus reports whether no further transitions leave this status.
func IsTerminalStatus(status string) bool {
	return status == StatusCheckedOut || status == StatusCanceled
}

func IsValidStatus(status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func IsValidCategory(category string) bool {
	_, ok := categoryNames[category]
	return ok
}

// CategoryDisplay returns the human readable category name.
func CategoryDisplay(category string) string {
	return categoryNames[category]
}
