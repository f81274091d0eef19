package models

import (
	"strings"
	"time"
)

// Office identifies one of the two front offices. Each office has its own
// services, windows, enablement flag and daily numbering sequence.
type Office string

const (
	OfficeRegistrar  Office = "registrar"
	OfficeAdmissions Office = "admissions"
)

// Valid reports whether o is a known office.
func (o Office) Valid() bool {
	return o == OfficeRegistrar || o == OfficeAdmissions
}

// ParseOffice normalizes a user-supplied office name.
func ParseOffice(s string) (Office, bool) {
	o := Office(strings.ToLower(strings.TrimSpace(s)))
	return o, o.Valid()
}

// Customer roles accepted at admit.
const (
	RoleVisitor = "Visitor"
	RoleStudent = "Student"
	RoleTeacher = "Teacher"
	RoleAlumni  = "Alumni"
)

// ValidRole reports whether role is one of the four enumerated values.
func ValidRole(role string) bool {
	switch role {
	case RoleVisitor, RoleStudent, RoleTeacher, RoleAlumni:
		return true
	}
	return false
}

// Student statuses for the Enroll path.
const (
	StudentIncomingNew = "incoming_new"
	StudentContinuing  = "continuing"
)

// Ticket statuses. Completed, cancelled and no-show are terminal; skipped
// stays eligible for requeue on the same day.
const (
	StatusWaiting   = "waiting"
	StatusServing   = "serving"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

// PriorityWindowName is reserved: a window with this name accepts only
// priority tickets, every other window only non-priority ones.
const PriorityWindowName = "Priority"

// Service names with dedicated admit paths.
const (
	ServiceEnroll          = "Enroll"
	ServiceDocumentClaim   = "Document Claim"
	ServiceDocumentRequest = "Document Request"
)

// Service is one transaction type offered by an office. SpecialRequest
// services are hidden from public listings.
type Service struct {
	ID             string `json:"id" db:"id"`
	Office         Office `json:"office" db:"office"`
	Name           string `json:"name" db:"name"`
	Active         bool   `json:"active" db:"active"`
	SpecialRequest bool   `json:"special_request" db:"special_request"`
}

// Window is a staffed service point. IsOpen gates routing, IsServing gates
// the next command.
type Window struct {
	ID         string   `json:"id" db:"id"`
	Office     Office   `json:"office" db:"office"`
	Name       string   `json:"name" db:"name"`
	ServiceIDs []string `json:"service_ids" db:"-"`
	IsOpen     bool     `json:"is_open" db:"is_open"`
	IsServing  bool     `json:"is_serving" db:"is_serving"`
	Version    int      `json:"-" db:"version"`
}

// IsPriority reports whether the window carries the reserved name.
func (w *Window) IsPriority() bool { return w.Name == PriorityWindowName }

// Serves reports whether serviceID is in the window's service set.
func (w *Window) Serves(serviceID string) bool {
	for _, id := range w.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// Ticket is one customer's queued presence.
type Ticket struct {
	ID            string  `json:"id" db:"id"`
	Office        Office  `json:"office" db:"office"`
	Number        int     `json:"number" db:"number"`
	TransactionNo *string `json:"transaction_no,omitempty" db:"transaction_no"`

	ServiceID string `json:"service_id" db:"service_id"`
	WindowID  string `json:"window_id" db:"window_id"`

	Role          string  `json:"role" db:"role"`
	StudentStatus *string `json:"student_status,omitempty" db:"student_status"`
	Priority      bool    `json:"priority" db:"priority"`

	CustomerFormID *string `json:"customer_form_id,omitempty" db:"customer_form_id"`

	Status           string `json:"status" db:"status"`
	CurrentlyServing bool   `json:"currently_serving" db:"currently_serving"`

	QueuedAt    time.Time  `json:"queued_at" db:"queued_at"`
	CalledAt    *time.Time `json:"called_at,omitempty" db:"called_at"`
	ServedAt    *time.Time `json:"served_at,omitempty" db:"served_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	SkippedAt   *time.Time `json:"skipped_at,omitempty" db:"skipped_at"`

	Rating      *int    `json:"rating,omitempty" db:"rating"`
	Remarks     *string `json:"remarks,omitempty" db:"remarks"`
	ProcessedBy *string `json:"processed_by,omitempty" db:"processed_by"`

	Version int `json:"-" db:"version"`
}

// Terminal reports whether the ticket has reached a terminal status.
func (t *Ticket) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// HoldsTransactionNo reports whether a ticket in this status keeps its
// transaction number reserved. Skipped, cancelled and no-show tickets
// release the number so the document can be claimed on a later visit.
// The tickets table enforces the same rule with a partial unique index.
func HoldsTransactionNo(status string) bool {
	switch status {
	case StatusWaiting, StatusServing, StatusCompleted:
		return true
	}
	return false
}

// CustomerForm holds the contact details collected on admit paths that
// require them. The ticket owns the form id; the form carries no
// back-pointer.
type CustomerForm struct {
	ID       string  `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	Contact  string  `json:"contact" db:"contact"`
	Email    string  `json:"email" db:"email"`
	Address  *string `json:"address,omitempty" db:"address"`
	IDNumber *string `json:"id_number,omitempty" db:"id_number"`
}

// Document request statuses.
const (
	DocRequestPending  = "pending"
	DocRequestApproved = "approved"
	DocRequestRejected = "rejected"
)

// DocumentRequest is the externally approved record a Document Claim ticket
// must reference. The dispatcher only ever reads and creates these; approval
// happens elsewhere.
type DocumentRequest struct {
	TransactionNo string    `json:"transaction_no" db:"transaction_no"`
	Office        Office    `json:"office" db:"office"`
	Name          string    `json:"name" db:"name"`
	Contact       string    `json:"contact" db:"contact"`
	Email         string    `json:"email" db:"email"`
	RequestItems  []string  `json:"request_items" db:"-"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Rating is the materialized, auto-approved feedback record created when a
// customer rates a completed ticket.
type Rating struct {
	ID        string    `json:"id" db:"id"`
	TicketID  string    `json:"ticket_id" db:"ticket_id"`
	Office    Office    `json:"office" db:"office"`
	Score     int       `json:"score" db:"score"`
	Approved  bool      `json:"approved" db:"approved"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated admin identity the core receives. Token
// verification and page-level RBAC happen upstream.
type Principal struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Office Office `json:"office"`
}

// DisplayName renders the customer-facing name for a ticket in admin and
// kiosk lists. Tickets without a form on the Enroll path render per office;
// anything else without a form is anonymous.
func DisplayName(t *Ticket, form *CustomerForm) string {
	if form != nil && form.Name != "" {
		return form.Name
	}
	if t.StudentStatus != nil {
		if t.Office == OfficeAdmissions {
			return "New Student"
		}
		return "Enrollee"
	}
	return "Anonymous Customer"
}
