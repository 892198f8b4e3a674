// Package tutor connects the practice conversation to a remote tutor service
// over gRPC, and provides that service on top of local AI collaborators.
//
// Payloads are google.protobuf.Struct messages so the service needs no
// generated stubs.
package tutor

import (
	"github.com/ashureev/belai/internal/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "belai.tutor.v1.Tutor"

// RPC method names.
const (
	methodOpenSession = "OpenSession"
	methodExchange    = "Exchange"
	methodFeedback    = "Feedback"
	methodHints       = "Hints"
)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func optionalStr(s *structpb.Struct, key string) *string {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	out := v.GetStringValue()
	return &out
}

func list(s *structpb.Struct, key string) []*structpb.Value {
	return s.GetFields()[key].GetListValue().GetValues()
}

func citationsToValue(citations []domain.Citation) []any {
	out := make([]any, 0, len(citations))
	for _, c := range citations {
		out = append(out, map[string]any{"uri": c.URI, "title": c.Title})
	}
	return out
}

func citationsFromValues(values []*structpb.Value) []domain.Citation {
	if len(values) == 0 {
		return nil
	}
	out := make([]domain.Citation, 0, len(values))
	for _, v := range values {
		fields := v.GetStructValue()
		uri := str(fields, "uri")
		if uri == "" {
			continue
		}
		out = append(out, domain.NewCitation(uri, str(fields, "title")))
	}
	return out
}

func feedbackToValue(items []domain.FeedbackItem) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		m := map[string]any{"type": string(it.Category), "message": it.Message}
		if it.Suggestion != "" {
			m["suggestion"] = it.Suggestion
		}
		out = append(out, m)
	}
	return out
}

func feedbackFromValues(values []*structpb.Value) []domain.FeedbackItem {
	out := make([]domain.FeedbackItem, 0, len(values))
	for _, v := range values {
		fields := v.GetStructValue()
		msg := str(fields, "message")
		if msg == "" {
			continue
		}
		out = append(out, domain.FeedbackItem{
			Category:   domain.NormalizeFeedbackCategory(str(fields, "type")),
			Message:    msg,
			Suggestion: str(fields, "suggestion"),
		})
	}
	return out
}

func stringsToValue(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func stringsFromValues(values []*structpb.Value) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}
