package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractSteps(t *testing.T) {
	text := `Materials
1. Thaw HEK293 cells
2) Seed 2e5 cells per well
Step 3: Transfect with Cas9 RNP
note: keep on ice
 10. Harvest after 48h
`
	got := ExtractSteps(text)
	want := []string{"Thaw HEK293 cells", "Seed 2e5 cells per well", "Transfect with Cas9 RNP", "Harvest after 48h"}
	if len(got) != len(want) {
		t.Fatalf("expected %d steps, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestArticle_ReportTruncates(t *testing.T) {
	a := Article{Title: "Long", Text: strings.Repeat("x", maxContentChars+10)}
	report := a.Report()
	if !strings.Contains(report, "(content truncated)") {
		t.Error("expected truncation marker")
	}
	if strings.Contains(report, "NUMBERED STEPS") {
		t.Error("no steps section expected")
	}
}

type fakeSearcher struct {
	query string
	err   error
}

func (f *fakeSearcher) Call(ctx context.Context, input string) (string, error) {
	f.query = input
	return "result", f.err
}

func TestSearchTool_Execute(t *testing.T) {
	fs := &fakeSearcher{}
	tool := NewSearchToolWith(fs)

	out, err := tool.Execute(context.Background(), `{"query": "indirect ELISA", "site": "protocols.io"}`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "result" || fs.query != "site:protocols.io indirect ELISA" {
		t.Errorf("unexpected query %q / output %q", fs.query, out)
	}

	out, _ = tool.Execute(context.Background(), `{"query": "  "}`)
	if !strings.HasPrefix(out, "Error") {
		t.Errorf("expected validation message, got %q", out)
	}

	fs.err = errors.New("rate limited")
	if _, err := tool.Execute(context.Background(), `{"query": "pcr"}`); err == nil {
		t.Error("expected search error to propagate")
	}
}

func TestScraperTool_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/protocol" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Indirect ELISA</title></head><body><article>
<h1>Indirect ELISA</h1>
<p>This protocol describes an indirect ELISA for detecting serum antibodies against a coated antigen in a 96-well plate format.</p>
<p>Coat the plate with antigen at two micrograms per millilitre overnight at four degrees, then wash three times with PBST buffer.</p>
<p>Block with five percent milk for one hour, add diluted serum samples, incubate, wash, and add the HRP conjugated secondary antibody.</p>
<script>alert("x")</script>
</article></body></html>`))
	}))
	defer srv.Close()

	tool := NewScraperTool()
	out, err := tool.Execute(context.Background(), `{"url": "`+srv.URL+`/protocol"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "-- CONTENT --") || !strings.Contains(out, "Coat the plate") {
		t.Errorf("unexpected report: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Error("markup should be stripped")
	}

	if _, err := tool.Execute(context.Background(), `{"url": "`+srv.URL+`/missing"}`); err == nil {
		t.Error("expected error for 404")
	}
	if _, err := tool.Execute(context.Background(), `{"url": "not a url"}`); err == nil {
		t.Error("expected error for invalid URL")
	}
}

type fakeRunStore struct {
	added   []string
	cleared string
}

func (f *fakeRunStore) AddRun(chatID string, program string, steps []string, intervalSeconds int) error {
	f.added = append(f.added, chatID+":"+program)
	return nil
}

func (f *fakeRunStore) ClearRuns(chatID string) error {
	f.cleared = chatID
	return nil
}

func TestScheduleTool_Execute(t *testing.T) {
	store := &fakeRunStore{}
	tool := NewScheduleTool(store, func(name string) bool { return name == "crispr_protocol" })

	if _, err := tool.Execute(context.Background(), `{"action": "clear"}`); err == nil {
		t.Error("expected error without chat ID")
	}

	ctx := WithChatID(context.Background(), "42")

	out, err := tool.Execute(ctx, `{"action": "schedule", "program": "crispr_protocol", "steps": ["a", "b"], "interval_seconds": 0}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "one-time") || len(store.added) != 1 || store.added[0] != "42:crispr_protocol" {
		t.Errorf("unexpected result %q %v", out, store.added)
	}

	out, _ = tool.Execute(ctx, `{"action": "schedule", "program": "crispr_protocol", "interval_seconds": 30}`)
	if !strings.Contains(out, "Minimum interval") {
		t.Errorf("expected interval check, got %q", out)
	}

	out, _ = tool.Execute(ctx, `{"action": "schedule", "program": "pcr_protocol"}`)
	if !strings.Contains(out, "unknown program") {
		t.Errorf("expected unknown program message, got %q", out)
	}

	if _, err := tool.Execute(ctx, `{"action": "clear"}`); err != nil || store.cleared != "42" {
		t.Errorf("clear failed: %v %q", err, store.cleared)
	}
}

func TestRegistry_Sorted(t *testing.T) {
	r := NewRegistry()
	r.Register(NewScraperTool())
	r.Register(NewSearchToolWith(&fakeSearcher{}))
	r.Register(NewScheduleTool(&fakeRunStore{}, nil))

	sorted := r.Sorted()
	if len(sorted) != 3 || sorted[0].Name() != "fetch_protocol" || sorted[2].Name() != "schedule_run" {
		t.Errorf("unexpected order")
	}
	if r.Get("literature_search") == nil {
		t.Error("lookup failed")
	}
}
