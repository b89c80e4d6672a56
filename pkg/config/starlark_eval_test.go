package config

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	se := NewStarlarkEvaluator(5 * time.Second)

	script := `
def double(x):
    return 2 * x

_hidden = 3
TP_SSR = double(base)
TT_DATA = "cint16"
TAPS = [1, 2, 3]
LANES = (1, 1)
FLAGS = struct(pingpong = True)
`
	res, err := se.Evaluate(context.Background(), script, map[string]interface{}{"base": 4})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if res.Output["TP_SSR"] != int64(8) {
		t.Errorf("TP_SSR = %#v", res.Output["TP_SSR"])
	}
	if res.Output["TT_DATA"] != "cint16" {
		t.Errorf("TT_DATA = %#v", res.Output["TT_DATA"])
	}
	if taps, ok := res.Output["TAPS"].([]interface{}); !ok || len(taps) != 3 {
		t.Errorf("TAPS = %#v", res.Output["TAPS"])
	}
	if lanes, ok := res.Output["LANES"].([]interface{}); !ok || len(lanes) != 2 || lanes[0] != int64(1) {
		t.Errorf("LANES = %#v", res.Output["LANES"])
	}
	if flags, ok := res.Output["FLAGS"].(map[string]interface{}); !ok || flags["pingpong"] != true {
		t.Errorf("FLAGS = %#v", res.Output["FLAGS"])
	}
	for _, hidden := range []string{"_hidden", "double", "base"} {
		if _, ok := res.Output[hidden]; ok {
			t.Errorf("did not expect %s in output", hidden)
		}
	}
}

func TestStarlarkEvaluator_Errors(t *testing.T) {
	se := NewStarlarkEvaluator(time.Second)
	ctx := context.Background()

	res, err := se.Evaluate(ctx, "X = undefined_name", nil)
	if err == nil {
		t.Fatal("expected an error for an undefined name")
	}
	if res == nil || res.Error == "" {
		t.Errorf("expected the error recorded in the result, got %+v", res)
	}

	if _, err := se.Evaluate(ctx, "X = 1", map[string]interface{}{"bad": struct{}{}}); err == nil {
		t.Error("expected an unsupported input type to fail")
	}

	se.maxSteps = 100
	_, err = se.Evaluate(ctx, "def f():\n    n = 0\n    for i in range(100000):\n        n += i\n    return n\nX = f()\n", nil)
	if err == nil || !strings.Contains(err.Error(), "steps") {
		t.Errorf("expected the step bound to stop the script, got %v", err)
	}
}

func TestStarlarkEvaluator_Cancelled(t *testing.T) {
	se := NewStarlarkEvaluator(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := se.Evaluate(ctx, "def f():\n    n = 0\n    for i in range(100000000):\n        n += i\n    return n\nX = f()\n", nil)
	if err == nil {
		t.Fatal("expected a cancelled context to stop the script")
	}
}
