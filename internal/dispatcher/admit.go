package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/frontdesk-io/frontdesk-ce/internal/apperr"
	"github.com/frontdesk-io/frontdesk-ce/internal/events"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
	"github.com/frontdesk-io/frontdesk-ce/internal/numbering"
)

// admitRetries bounds the persist loop that absorbs transaction-number and
// ticket-number collisions under concurrent admits.
const admitRetries = 3

// servicePath is the admit variant a service name classifies into.
type servicePath int

const (
	pathRegular servicePath = iota
	pathEnroll
	pathDocumentClaim
	pathDocumentRequest
)

func classifyService(name string) servicePath {
	switch name {
	case models.ServiceEnroll:
		return pathEnroll
	case models.ServiceDocumentClaim:
		return pathDocumentClaim
	case models.ServiceDocumentRequest:
		return pathDocumentRequest
	default:
		return pathRegular
	}
}

// CustomerFormInput is the contact set collected at the kiosk.
type CustomerFormInput struct {
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Email    string `json:"email"`
	Address  string `json:"address,omitempty"`
	IDNumber string `json:"id_number,omitempty"`
}

// AdmitInput is the kiosk admit request.
type AdmitInput struct {
	Office        models.Office      `json:"office"`
	ServiceName   string             `json:"service_name"`
	Role          string             `json:"role"`
	Priority      bool               `json:"priority"`
	StudentStatus string             `json:"student_status,omitempty"`
	CustomerForm  *CustomerFormInput `json:"customer_form,omitempty"`
	TransactionNo string             `json:"transaction_no,omitempty"`
	RequestItems  []string           `json:"request_items,omitempty"`
}

// AdmitResult is what the kiosk renders: the ticket, or for the Document
// Request path just the freshly minted transaction number.
type AdmitResult struct {
	Ticket        *models.Ticket `json:"ticket,omitempty"`
	ServiceName   string         `json:"service_name"`
	WindowName    string         `json:"window_name,omitempty"`
	TransactionNo string         `json:"transaction_no,omitempty"`
}

// Admit runs the admit pipeline: validate, classify the service path, number,
// route, persist, emit.
func (d *Dispatcher) Admit(ctx context.Context, in AdmitInput) (*AdmitResult, error) {
	if !in.Office.Valid() {
		return nil, apperr.Validation("unknown office", apperr.FieldError{
			Field: "office", Message: "must be registrar or admissions", Value: in.Office,
		})
	}
	if !d.queueCfg().Enabled(string(in.Office)) {
		return nil, apperr.E(apperr.CodeUnavailable, "the %s office is not accepting tickets right now", in.Office)
	}

	svc, err := d.store.Services.GetByName(ctx, in.Office, in.ServiceName)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.Validation("unknown service", apperr.FieldError{
				Field: "service_name", Message: "service does not exist in this office", Value: in.ServiceName,
			})
		}
		return nil, err
	}
	if !svc.Active {
		return nil, apperr.Validation("service is inactive", apperr.FieldError{
			Field: "service_name", Message: "service is not currently offered", Value: in.ServiceName,
		})
	}
	if !models.ValidRole(in.Role) {
		return nil, apperr.Validation("invalid role", apperr.FieldError{
			Field: "role", Message: "must be Visitor, Student, Teacher or Alumni", Value: in.Role,
		})
	}

	switch classifyService(svc.Name) {
	case pathEnroll:
		return d.admitEnroll(ctx, in, svc)
	case pathDocumentClaim:
		return d.admitDocumentClaim(ctx, in, svc)
	case pathDocumentRequest:
		return d.admitDocumentRequest(ctx, in)
	default:
		return d.admitRegular(ctx, in, svc)
	}
}

// admitEnroll queues an enrollment ticket. The customer form stays optional
// and is never created here; the admin list renders "Enrollee" or
// "New Student" instead.
func (d *Dispatcher) admitEnroll(ctx context.Context, in AdmitInput, svc *models.Service) (*AdmitResult, error) {
	if in.StudentStatus != models.StudentIncomingNew && in.StudentStatus != models.StudentContinuing {
		return nil, apperr.Validation("student status required", apperr.FieldError{
			Field: "student_status", Message: "must be incoming_new or continuing", Value: in.StudentStatus,
		})
	}
	status := in.StudentStatus
	return d.createTicket(ctx, in, svc, nil, "", &status)
}

// admitDocumentClaim queues a claim ticket against an approved document
// request, reusing its transaction number and seeding the contact form from
// the request record.
func (d *Dispatcher) admitDocumentClaim(ctx context.Context, in AdmitInput, svc *models.Service) (*AdmitResult, error) {
	txn := numbering.NormalizeTransactionNo(in.TransactionNo)
	if !numbering.ValidTransactionNo(txn) {
		return nil, apperr.Validation("invalid transaction number", apperr.FieldError{
			Field: "transaction_no", Message: "expected format like TR250101-001", Value: in.TransactionNo,
		})
	}

	req, err := d.store.DocumentRequests.GetByTransactionNo(ctx, txn)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.Validation("no document request on file", apperr.FieldError{
				Field: "transaction_no", Message: "no matching document request", Value: txn,
			})
		}
		return nil, err
	}
	if req.Status != models.DocRequestApproved {
		return nil, apperr.Validation("document request not approved", apperr.FieldError{
			Field: "transaction_no", Message: "document request is " + req.Status, Value: txn,
		})
	}

	if existing, err := d.store.Tickets.GetByTransactionNo(ctx, txn); err == nil {
		if models.HoldsTransactionNo(existing.Status) {
			return nil, apperr.E(apperr.CodeConflict, "a ticket already holds transaction number %s", txn)
		}
	} else if !apperr.Is(err, apperr.CodeNotFound) {
		return nil, err
	}

	form := &models.CustomerForm{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Contact: req.Contact,
		Email:   req.Email,
	}
	if err := d.store.CustomerForms.Create(ctx, form); err != nil {
		return nil, err
	}
	return d.createTicket(ctx, in, svc, &form.ID, txn, nil)
}

// admitDocumentRequest is the non-queuing path: it records the request and
// hands back a transaction number. No ticket exists until the approved
// request is claimed.
func (d *Dispatcher) admitDocumentRequest(ctx context.Context, in AdmitInput) (*AdmitResult, error) {
	if fields := missingContact(in.CustomerForm); len(fields) > 0 {
		return nil, apperr.Validation("customer details required", fields...)
	}
	if len(in.RequestItems) == 0 {
		return nil, apperr.Validation("request items required", apperr.FieldError{
			Field: "request_items", Message: "at least one document must be requested",
		})
	}

	var lastErr error
	for attempt := 0; attempt < admitRetries; attempt++ {
		req := &models.DocumentRequest{
			TransactionNo: d.txnGen.Next(in.Office),
			Office:        in.Office,
			Name:          in.CustomerForm.Name,
			Contact:       in.CustomerForm.Contact,
			Email:         in.CustomerForm.Email,
			RequestItems:  in.RequestItems,
			Status:        models.DocRequestPending,
			CreatedAt:     d.clock.Now(),
		}
		if err := d.store.DocumentRequests.Create(ctx, req); err != nil {
			if apperr.Is(err, apperr.CodeConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return &AdmitResult{
			ServiceName:   models.ServiceDocumentRequest,
			TransactionNo: req.TransactionNo,
		}, nil
	}
	return nil, fmt.Errorf("allocate transaction number: %w", lastErr)
}

// admitRegular queues a standard ticket with a full contact form.
func (d *Dispatcher) admitRegular(ctx context.Context, in AdmitInput, svc *models.Service) (*AdmitResult, error) {
	if fields := missingContact(in.CustomerForm); len(fields) > 0 {
		return nil, apperr.Validation("customer details required", fields...)
	}
	form := &models.CustomerForm{
		ID:      uuid.New().String(),
		Name:    strings.TrimSpace(in.CustomerForm.Name),
		Contact: strings.TrimSpace(in.CustomerForm.Contact),
		Email:   strings.TrimSpace(in.CustomerForm.Email),
	}
	if addr := strings.TrimSpace(in.CustomerForm.Address); addr != "" {
		form.Address = &addr
	}
	// The id number is only kept for priority lane eligibility checks.
	if id := strings.TrimSpace(in.CustomerForm.IDNumber); id != "" && in.Priority {
		form.IDNumber = &id
	}
	if err := d.store.CustomerForms.Create(ctx, form); err != nil {
		return nil, err
	}
	return d.createTicket(ctx, in, svc, &form.ID, "", nil)
}

// createTicket runs the shared tail of every queuing path: take the office
// lock, assign the number, route, persist with bounded retry, then emit.
// adoptTxn is non-empty only on the Document Claim path.
func (d *Dispatcher) createTicket(ctx context.Context, in AdmitInput, svc *models.Service, formID *string, adoptTxn string, studentStatus *string) (*AdmitResult, error) {
	window, err := d.router.Route(ctx, in.Office, svc.ID, in.Priority)
	if err != nil {
		return nil, err
	}

	unlock := d.seq.Lock(in.Office)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < admitRetries; attempt++ {
		number, err := d.seq.Next(ctx, in.Office)
		if err != nil {
			return nil, err
		}
		txn := adoptTxn
		if txn == "" {
			txn = d.txnGen.Next(in.Office)
		}

		t := &models.Ticket{
			ID:             uuid.New().String(),
			Office:         in.Office,
			Number:         number,
			TransactionNo:  &txn,
			ServiceID:      svc.ID,
			WindowID:       window.ID,
			Role:           in.Role,
			StudentStatus:  studentStatus,
			Priority:       in.Priority,
			CustomerFormID: formID,
			Status:         models.StatusWaiting,
			QueuedAt:       d.clock.Now(),
		}
		if err := d.store.Tickets.Create(ctx, t); err != nil {
			if apperr.Is(err, apperr.CodeConflict) && adoptTxn == "" {
				lastErr = err
				continue
			}
			return nil, err
		}

		d.logger.Printf("ticket admitted: office=%s number=%d service=%s window=%s priority=%t",
			t.Office, t.Number, svc.Name, window.Name, t.Priority)
		d.hub.EmitAll(events.Event{
			Type:     events.TypeQueueAdded,
			Office:   t.Office,
			WindowID: t.WindowID,
			Data:     ticketEvent(t),
		}, events.RoomAdmin(t.Office), events.RoomKiosk)
		d.emitTicketUpdate(t)

		return &AdmitResult{
			Ticket:        t,
			ServiceName:   svc.Name,
			WindowName:    window.Name,
			TransactionNo: txn,
		}, nil
	}
	return nil, fmt.Errorf("persist ticket: %w", lastErr)
}

func missingContact(f *CustomerFormInput) []apperr.FieldError {
	var out []apperr.FieldError
	if f == nil {
		return []apperr.FieldError{{Field: "customer_form", Message: "customer details are required"}}
	}
	if strings.TrimSpace(f.Name) == "" {
		out = append(out, apperr.FieldError{Field: "customer_form.name", Message: "name is required"})
	}
	if strings.TrimSpace(f.Contact) == "" {
		out = append(out, apperr.FieldError{Field: "customer_form.contact", Message: "contact number is required"})
	}
	if strings.TrimSpace(f.Email) == "" {
		out = append(out, apperr.FieldError{Field: "customer_form.email", Message: "email is required"})
	}
	return out
}
