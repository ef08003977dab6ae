package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"catalogsync/internal/erp"
	"catalogsync/internal/extract"
	"catalogsync/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeList struct {
	items   []string
	result  *erp.ListResult
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeList) FetchAll(ctx context.Context) (*erp.ListResult, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	if f.err != nil {
		return &erp.ListResult{}, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	res := &erp.ListResult{Pages: 1}
	for _, raw := range f.items {
		rec, err := extract.ParseRecord([]byte(raw))
		if err != nil {
			panic(err)
		}
		res.Items = append(res.Items, rec)
	}
	return res, nil
}

type fakeDetails struct {
	mu      sync.Mutex
	records map[string]string
	err     error
	calls   int
}

func (f *fakeDetails) Detail(_ context.Context, id string) (extract.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	raw, ok := f.records[id]
	if !ok {
		return nil, &erp.FetchError{Path: "/products/" + id, Attempts: 1, Status: http.StatusNotFound, Outcome: erp.OutcomeFatal}
	}
	return extract.ParseRecord([]byte(raw))
}

const widgetDetail = `{
	"id": "1001",
	"stockCode": "W-1",
	"name": "Widget",
	"barcode": "4006381333931",
	"description": "<p>Solid <b>oak</b></p><script>x()</script>",
	"salePrices": [{"value": 12.5}, {"value": 99}],
	"stockLevel": 7.9,
	"lastModified": "2024-03-01T10:15:30.123456789+01:00",
	"extraFields": [
		{"name": "Length (cm)", "value": "2,40"},
		{"label": "Breite", "value": {"value": "1.7"}},
		{"name": "Country of origin", "text": " Italy "}
	]
}`

const gadgetDetail = `{"id": "1002", "name": "Gadget", "price": "3.349", "stock": -4,
	"customFields": [{"name": "Dimensions", "value": "30 x 20 cm"}]}`

func newSyncFixture(list *fakeList, details *fakeDetails, threshold int) (service.SyncService, *stubProductRepo) {
	repo := newStubProductRepo()
	svc := service.NewSyncService(list, details, repo, nil, service.SyncOptions{BreakerThreshold: threshold})
	return svc, repo
}

// ── Tests: SyncAll ───────────────────────────────────────────────────────────

func TestSyncAll_MapsDetailRecords(t *testing.T) {
	list := &fakeList{items: []string{`{"id": "1001"}`, `{"id": "1002"}`}}
	details := &fakeDetails{records: map[string]string{"1001": widgetDetail, "1002": gadgetDetail}}
	svc, repo := newSyncFixture(list, details, 0)

	res, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Started)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Upserted)
	require.NotNil(t, res.FinishedAt)

	w, err := repo.FindByStockCode(context.Background(), "W-1")
	require.NoError(t, err)
	assert.Equal(t, "1001", w.ExternalID)
	assert.Equal(t, "Widget", w.Name)
	assert.Equal(t, "4006381333931", w.SKU)
	assert.Equal(t, "Solid oak", w.Description)
	assert.Equal(t, "12.50", w.Price.StringFixed(2))
	assert.Equal(t, 7, w.StockLevel)
	require.NotNil(t, w.Origin)
	assert.Equal(t, "Italy", *w.Origin)
	require.NotNil(t, w.Length)
	assert.Equal(t, "2.4", w.Length.String())
	require.NotNil(t, w.Width)
	assert.Equal(t, "1.7", w.Width.String())
	assert.Equal(t, "2.4 x 1.7", w.Size)
	require.NotNil(t, w.LastModified)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 15, 30, 123456000, time.UTC), *w.LastModified)
	assert.NotEmpty(t, w.RawExtraFields)
	assert.NotNil(t, w.LastSyncedAt)

	// stock code falls back to the identifier, price is rounded, negative stock is 0
	g, err := repo.FindByStockCode(context.Background(), "1002")
	require.NoError(t, err, "detail carries no stock code alias; the identifier is used")
	assert.Equal(t, "3.35", g.Price.StringFixed(2))
	assert.Equal(t, 0, g.StockLevel)
	assert.Equal(t, "1002", g.SKU)
	assert.Equal(t, "30 x 20", g.Size)
}

func TestSyncAll_IsIdempotent(t *testing.T) {
	list := &fakeList{items: []string{`{"id": "1001"}`, `{"id": "1002"}`}}
	details := &fakeDetails{records: map[string]string{"1001": widgetDetail, "1002": gadgetDetail}}
	svc, repo := newSyncFixture(list, details, 0)
	ctx := context.Background()

	first, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, 2, second.Upserted)

	all, _ := repo.ListAll(ctx)
	assert.Len(t, all, 2)

	details.records["1002"] = `{"id": "1002", "name": "Gadget v2", "price": 4}`
	third, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Updated)
	assert.Equal(t, 1, third.Unchanged)
}

func TestSyncAll_SkipsItemsWithoutIdentifier(t *testing.T) {
	list := &fakeList{items: []string{`{"name": "orphan"}`, `{"ean": "777"}`}}
	details := &fakeDetails{records: map[string]string{"777": `{"name": "By barcode", "price": 1}`}}
	svc, repo := newSyncFixture(list, details, 0)

	res, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Created)

	p, err := repo.FindByStockCode(context.Background(), "777")
	require.NoError(t, err)
	assert.Equal(t, "777", p.SKU)
}

func TestSyncAll_CountsInvalidListEntriesAsSkipped(t *testing.T) {
	list := &fakeList{result: &erp.ListResult{InvalidItems: 2, MalformedPages: 1}}
	svc, _ := newSyncFixture(list, &fakeDetails{}, 0)

	res, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.MalformedPages)
}

func TestSyncAll_PerItemFailureContinues(t *testing.T) {
	list := &fakeList{items: []string{`{"id": "missing"}`, `{"id": "1001"}`}}
	details := &fakeDetails{records: map[string]string{"1001": widgetDetail}}
	svc, _ := newSyncFixture(list, details, 0)

	res, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, "closed", svc.BreakerState().State, "a 404 does not count against the upstream")
}

func TestSyncAll_ListFailureAborts(t *testing.T) {
	boom := errors.New("connection refused")
	svc, _ := newSyncFixture(&fakeList{err: boom}, &fakeDetails{}, 0)

	res, err := svc.SyncAll(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, res.Started)
	assert.Contains(t, res.Error, "connection refused")

	last, err := svc.LastRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Contains(t, last.Error, "connection refused")
	assert.False(t, svc.Running())
}

func TestSyncAll_ConcurrentTriggerIsNoop(t *testing.T) {
	list := &fakeList{
		items:   []string{`{"id": "1001"}`},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	details := &fakeDetails{records: map[string]string{"1001": widgetDetail}}
	svc, _ := newSyncFixture(list, details, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.SyncAll(context.Background())
	}()

	<-list.entered
	assert.True(t, svc.Running())
	res, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Started)

	close(list.release)
	<-done
	assert.False(t, svc.Running())

	last, err := svc.LastRun(context.Background())
	require.NoError(t, err)
	assert.True(t, last.Started)
	assert.Equal(t, 1, last.Created)
}

func TestSyncAll_BreakerOpensOnUpstreamFailures(t *testing.T) {
	list := &fakeList{items: []string{`{"id": "a"}`, `{"id": "b"}`, `{"id": "c"}`, `{"id": "d"}`, `{"id": "e"}`}}
	details := &fakeDetails{err: &erp.FetchError{Path: "/products/x", Attempts: 6, Status: http.StatusServiceUnavailable, Outcome: erp.OutcomeRetryable}}
	svc, _ := newSyncFixture(list, details, 2)

	res, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Failed)
	assert.Equal(t, 2, details.calls, "items after the breaker opened are not fetched")
	assert.Equal(t, "open", svc.BreakerState().State)
}

func TestLastRun_EmptyBeforeFirstRun(t *testing.T) {
	svc, _ := newSyncFixture(&fakeList{}, &fakeDetails{}, 0)
	last, err := svc.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)
}
