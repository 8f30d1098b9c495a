package rbac

import "context"

// RolePermissions is the default permission table. Students see and build
// their own record; instructors additionally see everyone's grades and the
// course-level reports; admin bypasses everything.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"problem:submit",
		"grade:view-own",
		"progress:view-own",
	},
	"instructor": {
		"course:view",
		"problem:submit",
		"grade:view-own",
		"grade:view-any",
		"grade:export",
		"progress:view-own",
		"progress:view-any",
		"distributions:view",
		"users:*",
	},
	"admin": {"*"},
}

var ctxKeySubject = struct{ name string }{"subject"}

// WithSubject records the authenticated user id on the context.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeySubject).(string); ok {
		return s
	}
	return ""
}
