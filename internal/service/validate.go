package service

import (
	"fmt"
	"strings"

	"github.com/iliyamo/court-reservation/internal/apperror"
	"github.com/iliyamo/court-reservation/internal/model"
)

const maxTextLen = 1000

func parseSlot(date, start, end string) (model.Date, model.Window, error) {
	if strings.TrimSpace(date) == "" {
		return model.Date{}, model.Window{}, apperror.Validation("date is required")
	}
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return model.Date{}, model.Window{}, apperror.Validation("start and end are required")
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return model.Date{}, model.Window{}, apperror.Validation(err.Error())
	}
	st, err := model.ParseTimeOfDay(start)
	if err != nil {
		return model.Date{}, model.Window{}, apperror.Validation("start: " + err.Error())
	}
	en, err := model.ParseTimeOfDay(end)
	if err != nil {
		return model.Date{}, model.Window{}, apperror.Validation("end: " + err.Error())
	}
	w, err := model.NewWindow(st, en)
	if err != nil {
		return model.Date{}, model.Window{}, apperror.Validation(err.Error())
	}
	return d, w, nil
}

func (s *RequestService) validateSubmit(in SubmitInput) (model.Date, model.Window, error) {
	var missing []string
	if in.ResourceID == 0 {
		missing = append(missing, "resource_id")
	}
	if in.RequesterID == 0 {
		missing = append(missing, "requester_id")
	}
	if in.DurationMinutes == 0 {
		missing = append(missing, "duration")
	}
	if in.AmountCents == 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return model.Date{}, model.Window{}, apperror.Validation("missing required fields: " + strings.Join(missing, ", "))
	}

	d, w, err := parseSlot(in.Date, in.Start, in.End)
	if err != nil {
		return d, w, err
	}
	if (w.End-w.Start)%60 != 0 {
		return d, w, apperror.Validation("window must cover whole minutes")
	}
	if in.DurationMinutes != w.Minutes() {
		return d, w, apperror.Validation(fmt.Sprintf("duration %d does not match window length of %d minutes", in.DurationMinutes, w.Minutes()))
	}
	if in.AmountCents < 0 {
		return d, w, apperror.Validation("amount must be positive")
	}
	if in.TeamID != nil && *in.TeamID == 0 {
		return d, w, apperror.Validation("team_id must be positive when present")
	}
	if len(in.Message) > maxTextLen {
		return d, w, apperror.Validation("message is too long")
	}
	if s.opts.RejectPastDates {
		today := model.DateOf(s.now().In(s.opts.Location))
		if d.Before(today) {
			return d, w, apperror.Validation("date is in the past")
		}
	}
	return d, w, nil
}

// Action is a processor decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func validateDecide(in DecideInput) error {
	if in.RequestID == 0 {
		return apperror.Validation("request id is required")
	}
	if in.ProcessorID == 0 {
		return apperror.Validation("processor_id is required")
	}
	switch in.Action {
	case ActionApprove, ActionReject:
	case "":
		return apperror.Validation("action is required")
	default:
		return apperror.Validation(fmt.Sprintf("unknown action %q: expected approve or reject", in.Action))
	}
	if len(in.Reason) > maxTextLen {
		return apperror.Validation("reason is too long")
	}
	return nil
}
