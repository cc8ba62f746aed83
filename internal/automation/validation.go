package automation

import (
	"fmt"
	"strings"
)

const (
	maxNameLength = 100
	maxActions    = 20
)

// httpMethodsWithBody lists the methods a sendHttpRequest action may
// attach a body to.
var httpMethodsWithBody = map[string]bool{
	"POST":  true,
	"PUT":   true,
	"PATCH": true,
}

var allowedHTTPMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// Validate checks an automation for structural errors.
func Validate(a *Automation) error {
	if a == nil {
		return ErrInvalidAutomation
	}

	if a.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAutomation)
	}
	if len(a.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidAutomation, maxNameLength)
	}
	if a.OrganizationID == "" {
		return fmt.Errorf("%w: organization is required", ErrInvalidAutomation)
	}

	if len(a.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidAutomation)
	}
	if len(a.Actions) > maxActions {
		return fmt.Errorf("%w: more than %d actions", ErrInvalidAutomation, maxActions)
	}

	for i, action := range a.Actions {
		if err := validateAction(action); err != nil {
			return fmt.Errorf("%w: action %d: %v", ErrInvalidAutomation, i, err)
		}
	}

	return nil
}

func validateAction(a Action) error {
	if !a.Type.IsValid() {
		return fmt.Errorf("unknown action type %q", a.Type)
	}

	switch a.Type {
	case ActionCreateEvent:
		if a.CreateEvent == nil {
			return fmt.Errorf("createEvent configuration missing")
		}
		if a.CreateEvent.Type == "" {
			return fmt.Errorf("createEvent event type is required")
		}

	case ActionCreateBookmark:
		if a.CreateBookmark == nil {
			return fmt.Errorf("createBookmark configuration missing")
		}
		if a.CreateBookmark.Name == "" {
			return fmt.Errorf("createBookmark name is required")
		}
		if a.CreateBookmark.DurationSeconds <= 0 {
			return fmt.Errorf("createBookmark duration must be positive")
		}

	case ActionSendHTTPRequest:
		if a.SendHTTPRequest == nil {
			return fmt.Errorf("sendHttpRequest configuration missing")
		}
		if a.SendHTTPRequest.URL == "" {
			return fmt.Errorf("sendHttpRequest url is required")
		}
		method := strings.ToUpper(a.SendHTTPRequest.Method)
		if !allowedHTTPMethods[method] {
			return fmt.Errorf("sendHttpRequest method %q not allowed", a.SendHTTPRequest.Method)
		}
		if !httpMethodsWithBody[method] && a.SendHTTPRequest.Body != "" {
			return fmt.Errorf("sendHttpRequest body not allowed for %s", method)
		}
	}

	return nil
}
