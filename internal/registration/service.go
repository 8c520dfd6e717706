package registration

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"regdesk/internal/apperr"
	"regdesk/internal/audit"
	"regdesk/internal/identity"
	"regdesk/internal/mailer"
	"regdesk/internal/metrics"
	"regdesk/internal/participant"
	"regdesk/internal/queue"
	"regdesk/internal/ratelimit"
)

// SubmitInput carries the identity fields split out of a submission; the
// rest of the form travels opaquely in Form.
type SubmitInput struct {
	Name      string
	Email     string
	Phone     string
	BirthDate string
	Paid      bool
	Form      map[string]any
}

// SubmitResult is returned to the submitter.
type SubmitResult struct {
	PersonalCode string `json:"personal_code"`
	ResponseID   string `json:"response_id"`
}

// Service orchestrates the public registration surface.
type Service struct {
	store    Store
	limiter  *ratelimit.Limiter
	recorder *audit.Recorder
	mailq    queue.Queue
	secret   string
	logger   *zap.SugaredLogger
}

// NewService builds the service. secret parameterizes lookup-key
// derivation and stays server-side.
func NewService(store Store, limiter *ratelimit.Limiter, recorder *audit.Recorder, mailq queue.Queue, secret string, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, limiter: limiter, recorder: recorder, mailq: mailq, secret: secret, logger: logger}
}

// Submit validates the survey, passes admission control, generates a
// personal code, and commits the participant and response as one atomic
// write.
func (s *Service) Submit(ctx context.Context, surveyID, clientIP string, in SubmitInput) (SubmitResult, error) {
	if strings.TrimSpace(in.Name) == "" {
		return SubmitResult{}, apperr.New(apperr.KindValidation, "name is required")
	}

	survey, err := s.activeSurvey(ctx, surveyID)
	if err != nil {
		return SubmitResult{}, err
	}

	if err := s.limiter.Check(ctx, ratelimit.OpSubmit, clientIP); err != nil {
		return SubmitResult{}, err
	}

	p := &participant.Participant{
		Name:  strings.TrimSpace(in.Name),
		Email: optional(in.Email),
		Phone: optional(in.Phone),
		Paid:  in.Paid,
	}
	if key, err := identity.DeriveKey(in.Name, in.BirthDate, s.secret); err == nil {
		p.LookupKey = &key
	}

	resp := &Response{SurveyID: survey.ID, SubmittedData: in.Form}

	// One retry on a personal-code collision; the code space makes a
	// second collision in a row effectively impossible.
	for attempt := 0; attempt < 2; attempt++ {
		code, err := identity.RandomCode()
		if err != nil {
			return SubmitResult{}, err
		}
		resp.PersonalCode = code

		err = s.store.CreateRegistration(ctx, p, resp)
		if err == nil {
			break
		}
		if errors.Is(err, ErrCodeTaken) && attempt == 0 {
			continue
		}
		return SubmitResult{}, apperr.Wrap(err, apperr.KindStorage, "registration write failed")
	}

	metrics.Registrations.Inc()
	s.recorder.Record(ctx, "public", audit.ActionCreate, audit.TargetParticipant, p.ID, p.Name, nil)

	return SubmitResult{PersonalCode: resp.PersonalCode, ResponseID: resp.ID}, nil
}

// LookupByCode fetches a response by its personal code, behind admission
// control.
func (s *Service) LookupByCode(ctx context.Context, code, clientIP string) (*Response, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !identity.IsKeyShaped(code) {
		return nil, apperr.New(apperr.KindValidation, "malformed personal code")
	}
	if err := s.limiter.Check(ctx, ratelimit.OpCodeLookup, clientIP); err != nil {
		return nil, err
	}
	resp, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "code lookup failed")
	}
	if resp == nil {
		return nil, apperr.New(apperr.KindNotFound, "no registration matches that code")
	}
	return resp, nil
}

// UpdateByCode edits the submitted data of an existing response in place.
func (s *Service) UpdateByCode(ctx context.Context, code, clientIP string, data map[string]any) (*Response, error) {
	resp, err := s.LookupByCode(ctx, code, clientIP)
	if err != nil {
		return nil, err
	}

	changes := diffSubmittedData(resp.SubmittedData, data)
	if err := s.store.UpdateResponse(ctx, resp.ID, data); err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "registration update failed")
	}
	if len(changes) > 0 {
		s.recorder.Record(ctx, "code:"+code, audit.ActionUpdate, audit.TargetParticipant, resp.ParticipantID, "", changes)
	}

	resp.SubmittedData = data
	return resp, nil
}

// SendCodeByEmail enqueues a recovery mail when the address matches a
// registration. It reports success either way so callers cannot probe
// which addresses are registered.
func (s *Service) SendCodeByEmail(ctx context.Context, email, surveyID, clientIP string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return apperr.New(apperr.KindValidation, "a valid email address is required")
	}
	if err := s.limiter.Check(ctx, ratelimit.OpRecoverEmail, clientIP); err != nil {
		return err
	}

	resp, err := s.store.FindByEmail(ctx, surveyID, email)
	if err != nil || resp == nil {
		if err != nil && s.logger != nil {
			s.logger.Errorw("recovery lookup failed", "error", err)
		}
		return nil
	}

	title := surveyID
	if survey, err := s.store.GetSurvey(ctx, surveyID); err == nil && survey != nil {
		title = survey.Title
	}
	msg, err := mailer.NewMessage(mailer.Job{To: email, PersonalCode: resp.PersonalCode, SurveyTitle: title})
	if err == nil {
		err = s.mailq.Publish(ctx, msg)
	}
	if err != nil && s.logger != nil {
		s.logger.Errorw("recovery mail enqueue failed", "error", err)
	}
	return nil
}

func (s *Service) activeSurvey(ctx context.Context, surveyID string) (*Survey, error) {
	survey, err := s.store.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "survey fetch failed")
	}
	if survey == nil || !survey.Active {
		return nil, apperr.New(apperr.KindNotFound, "survey not found or inactive")
	}
	return survey, nil
}

func diffSubmittedData(before, after map[string]any) map[string]audit.Change {
	changes := map[string]audit.Change{}
	for field, to := range after {
		from, had := before[field]
		if !had || !reflect.DeepEqual(from, to) {
			changes[field] = audit.Change{From: from, To: to}
		}
	}
	for field, from := range before {
		if _, still := after[field]; !still {
			changes[field] = audit.Change{From: from, To: nil}
		}
	}
	return changes
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
