package app_test

import (
	"context"
	"testing"

	"github.com/artpar/caas/app"
)

func TestExpressionService_Eval(t *testing.T) {
	svc := app.NewExpressionService()
	ctx := context.Background()
	data := map[string]any{
		"name":   "  Acme Web ",
		"tags":   []any{"a", "b", "c"},
		"empty":  "",
		"data":   map[string]any{"id": "1"},
		"params": map[string]string{"lang": "en"},
	}

	tests := []struct {
		expr string
		want any
	}{
		{`lower(trim(name))`, "acme web"},
		{`upper("x")`, "X"},
		{`replace(trim(name), " ", "-")`, "Acme-Web"},
		{`size(tags)`, 3},
		{`field(data, "id")`, "1"},
		{`coalesce(empty, "fallback")`, "fallback"},
		{`default(empty, "d")`, "d"},
		{`jsonEncode(data)`, `{"id":"1"}`},
		{`params.lang == "en"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := svc.Eval(ctx, tt.expr, data)
			if err != nil {
				t.Fatalf("Eval error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval = %v (%T), want %v", got, got, tt.want)
			}
		})
	}
}

func TestExpressionService_SetCopies(t *testing.T) {
	svc := app.NewExpressionService()
	orig := map[string]any{"id": "1"}

	got, err := svc.Eval(context.Background(), `set(data, "short", true)`, map[string]any{"data": orig})
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["short"] != true || m["id"] != "1" {
		t.Errorf("set = %v", got)
	}
	if _, touched := orig["short"]; touched {
		t.Error("set modified its input")
	}
}

func TestExpressionService_EvalBool(t *testing.T) {
	svc := app.NewExpressionService()
	ctx := context.Background()
	env := map[string]any{"anonymous": true}

	ok, err := svc.EvalBool(ctx, `!anonymous`, env)
	if err != nil || ok {
		t.Errorf("EvalBool = %v, %v", ok, err)
	}

	if _, err := svc.EvalBool(ctx, `"yes"`, env); err == nil {
		t.Error("non-boolean result accepted")
	}
}

func TestExpressionService_CompileErrors(t *testing.T) {
	svc := app.NewExpressionService()
	if err := svc.Compile(`1 +`, map[string]any{}); err == nil {
		t.Error("syntax error accepted")
	}
	if err := svc.Compile(`lower("a", "b")`, map[string]any{}); err != nil {
		// argument count is checked at run time
		t.Errorf("Compile error: %v", err)
	}
	if _, err := svc.Eval(context.Background(), `lower("a", "b")`, map[string]any{}); err == nil {
		t.Error("wrong argument count accepted")
	}
}

func TestExpressionService_ClearCache(t *testing.T) {
	svc := app.NewExpressionService()
	ctx := context.Background()

	if _, err := svc.Eval(ctx, `x + 1`, map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
	svc.ClearCache()
	got, err := svc.Eval(ctx, `x + 1`, map[string]any{"x": 41})
	if err != nil || got != 42 {
		t.Errorf("after ClearCache = %v, %v", got, err)
	}
}
