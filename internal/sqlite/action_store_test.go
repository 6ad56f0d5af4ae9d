package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/sequence"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local)

func newTestStore(t *testing.T, db *DB, profileID string) *ActionStore {
	t.Helper()
	store := NewActionStore(db, profileID, ActionStoreOptions{
		Now: func() time.Time { return testNow },
	}, nil)
	t.Cleanup(store.Shutdown)
	return store
}

func newTestSequence(t *testing.T) *sequence.Runner {
	t.Helper()
	seq := sequence.NewRunner("test", nil)
	t.Cleanup(seq.Close)
	return seq
}

func queryActions(t *testing.T, store *ActionStore, filter activity.Filter) []activity.Action {
	t.Helper()
	seq := newTestSequence(t)

	type result struct {
		actions []activity.Action
		err     error
	}
	results := make(chan result, 1)
	store.GetFilteredActions(context.Background(), filter, seq, func(actions []activity.Action, err error) {
		results <- result{actions: actions, err: err}
	})

	select {
	case r := <-results:
		require.NoError(t, r.err)
		return r.actions
	case <-time.After(5 * time.Second):
		t.Fatal("query did not complete")
		return nil
	}
}

func appendAction(t *testing.T, store *ActionStore, a activity.Action) activity.Action {
	t.Helper()
	require.NoError(t, store.Append(context.Background(), &a))
	return a
}

type recordingObserver struct {
	mu      sync.Mutex
	actions []activity.Action
}

func (o *recordingObserver) OnActionAppended(a activity.Action) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.actions = append(o.actions, a)
}

func (o *recordingObserver) seen() []activity.Action {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]activity.Action(nil), o.actions...)
}

func TestActionStore_AppendNotifiesObservers(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	obs := &recordingObserver{}
	store.AddObserver(obs)
	store.AddObserver(obs)

	a := appendAction(t, store, activity.Action{
		ExtensionID: "ext",
		Type:        activity.TypeAPICall,
		APICall:     "tabs.query",
		PageURL:     "HTTP://Example.com",
	})
	require.NotZero(t, a.ID)
	require.Equal(t, testNow, a.Time)
	require.Equal(t, "http://example.com/", a.PageURL)

	seen := obs.seen()
	require.Len(t, seen, 1)
	require.Equal(t, a.ID, seen[0].ID)

	store.RemoveObserver(obs)
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPIEvent})
	require.Len(t, obs.seen(), 1)
}

func TestActionStore_AppendRejectsInvalid(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	err := store.Append(context.Background(), &activity.Action{Type: activity.TypeAPICall})
	require.ErrorIs(t, err, activity.ErrInvalidAction)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestActionStore_FilterByType(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall, Time: testNow.Add(-3 * time.Minute)})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeDOMAccess, Time: testNow.Add(-2 * time.Minute)})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall, Time: testNow.Add(-1 * time.Minute)})

	all := queryActions(t, store, activity.AnyFilter())
	require.Len(t, all, 3)
	require.Equal(t, activity.TypeAPICall, all[0].Type)
	require.Equal(t, activity.TypeDOMAccess, all[1].Type)
	require.True(t, all[0].Time.After(all[1].Time))

	filter := activity.AnyFilter()
	filter.Type = activity.TypeAPICall
	calls := queryActions(t, store, filter)
	require.Len(t, calls, 2)
	for _, a := range calls {
		require.Equal(t, activity.TypeAPICall, a.Type)
	}
}

func TestActionStore_FilterFields(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	appendAction(t, store, activity.Action{ExtensionID: "a", Type: activity.TypeAPICall, APICall: "tabs.query", PageURL: "https://example.com/one"})
	appendAction(t, store, activity.Action{ExtensionID: "b", Type: activity.TypeAPICall, APICall: "tabs.create", PageURL: "https://other.com/"})
	appendAction(t, store, activity.Action{ExtensionID: "a", Type: activity.TypeWebRequest, ArgURL: "https://cdn.example.com/lib.js"})

	filter := activity.AnyFilter()
	filter.ExtensionID = "a"
	require.Len(t, queryActions(t, store, filter), 2)

	filter = activity.AnyFilter()
	filter.APICall = "tabs.create"
	got := queryActions(t, store, filter)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].ExtensionID)

	filter = activity.AnyFilter()
	filter.PageURL = "https://example.com/"
	got = queryActions(t, store, filter)
	require.Len(t, got, 1)
	require.Equal(t, "tabs.query", got[0].APICall)

	filter = activity.AnyFilter()
	filter.ArgURL = "https://cdn.example.com"
	got = queryActions(t, store, filter)
	require.Len(t, got, 1)
	require.Equal(t, activity.TypeWebRequest, got[0].Type)
}

func TestActionStore_FilterURLPrefix(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	appendAction(t, store, activity.Action{ExtensionID: "a", Type: activity.TypeAPICall, PageURL: "https://example.com/Path/one"})
	appendAction(t, store, activity.Action{ExtensionID: "a", Type: activity.TypeAPICall, PageURL: "https://example.com/a_b"})
	appendAction(t, store, activity.Action{ExtensionID: "a", Type: activity.TypeWebRequest, ArgURL: "https://example.com/axb"})

	filter := activity.AnyFilter()
	filter.PageURL = "HTTPS://EXAMPLE.COM/path"
	require.Len(t, queryActions(t, store, filter), 1)

	filter = activity.AnyFilter()
	filter.PageURL = "https://example.com/a_b"
	require.Len(t, queryActions(t, store, filter), 1)

	// Wildcards in the filter are literal.
	filter = activity.AnyFilter()
	filter.ArgURL = "https://example.com/a_b"
	require.Empty(t, queryActions(t, store, filter))

	filter = activity.AnyFilter()
	filter.PageURL = "https://example.com/a%"
	require.Empty(t, queryActions(t, store, filter))
}

func TestActionStore_FilterDaysAgo(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall, Other: "today", Time: testNow.Add(-time.Hour)})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall, Other: "yesterday", Time: testNow.AddDate(0, 0, -1)})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall, Other: "last week", Time: testNow.AddDate(0, 0, -7)})

	filter := activity.AnyFilter()
	filter.DaysAgo = 0
	got := queryActions(t, store, filter)
	require.Len(t, got, 1)
	require.Equal(t, "today", got[0].Other)

	filter.DaysAgo = 1
	got = queryActions(t, store, filter)
	require.Len(t, got, 1)
	require.Equal(t, "yesterday", got[0].Other)

	filter.DaysAgo = activity.Unbounded
	require.Len(t, queryActions(t, store, filter), 3)
}

func TestActionStore_MaxResults(t *testing.T) {
	db := NewTestDB(t)
	store := NewActionStore(db, "p1", ActionStoreOptions{MaxResults: 2}, nil)
	t.Cleanup(store.Shutdown)

	for i := 0; i < 5; i++ {
		appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeDOMEvent})
	}
	require.Len(t, queryActions(t, store, activity.AnyFilter()), 2)
}

func TestActionStore_ProfileIsolation(t *testing.T) {
	db := NewTestDB(t)
	s1 := newTestStore(t, db, "p1")
	s2 := newTestStore(t, db, "p2")

	appendAction(t, s1, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall})
	a2 := appendAction(t, s2, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall})

	require.Len(t, queryActions(t, s1, activity.AnyFilter()), 1)

	require.NoError(t, s1.RemoveActions(context.Background(), []int64{a2.ID}))
	require.NoError(t, s1.DeleteDatabase(context.Background()))
	require.Empty(t, queryActions(t, s1, activity.AnyFilter()))
	require.Len(t, queryActions(t, s2, activity.AnyFilter()), 1)
}

func TestActionStore_RemoveActions(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	var ids []int64
	for i := 0; i < 4; i++ {
		ids = append(ids, appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall}).ID)
	}

	require.NoError(t, store.RemoveActions(context.Background(), nil))
	require.NoError(t, store.RemoveActions(context.Background(), []int64{ids[0], ids[2], 9999}))

	got := queryActions(t, store, activity.AnyFilter())
	require.Len(t, got, 2)
	remaining := []int64{got[0].ID, got[1].ID}
	require.ElementsMatch(t, []int64{ids[1], ids[3]}, remaining)
}

func TestActionStore_RemoveURLs(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall, PageURL: "http://example.com/"})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeWebRequest, ArgURL: "http://example.com"})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall, PageURL: "http://example.com/deeper"})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall})

	require.NoError(t, store.RemoveURLs(context.Background(), nil))
	require.NoError(t, store.RemoveURLs(context.Background(), []activity.URL{activity.ParseURL("not a url")}))
	require.Len(t, queryActions(t, store, activity.AnyFilter()), 4)

	require.NoError(t, store.RemoveURLs(context.Background(), []activity.URL{
		activity.ParseURL("http://example.com/"),
		activity.ParseURL("not a url"),
	}))

	got := queryActions(t, store, activity.AnyFilter())
	require.Len(t, got, 2)
	for _, a := range got {
		require.NotEqual(t, "http://example.com/", a.PageURL)
		require.NotEqual(t, "http://example.com/", a.ArgURL)
	}
}

func TestActionStore_DeleteDatabase(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")

	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall})
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeContentScript})

	require.NoError(t, store.DeleteDatabase(context.Background()))
	require.Empty(t, queryActions(t, store, activity.AnyFilter()))
}

func TestActionStore_CanceledQueryNeverPosts(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")
	appendAction(t, store, activity.Action{ExtensionID: "ext", Type: activity.TypeAPICall})

	seq := newTestSequence(t)
	called := make(chan struct{}, 1)
	pending := store.GetFilteredActions(context.Background(), activity.AnyFilter(), seq, func([]activity.Action, error) {
		called <- struct{}{}
	})
	pending.Cancel()

	// Drain the pool and the sequence before checking.
	store.Shutdown()
	flushed := make(chan struct{})
	require.True(t, seq.Post(func() { close(flushed) }))
	<-flushed

	select {
	case <-called:
		t.Fatal("continuation ran after cancel")
	default:
	}
}

func TestActionStore_QueryAfterShutdown(t *testing.T) {
	db := NewTestDB(t)
	store := newTestStore(t, db, "p1")
	store.Shutdown()

	seq := newTestSequence(t)
	errs := make(chan error, 1)
	store.GetFilteredActions(context.Background(), activity.AnyFilter(), seq, func(_ []activity.Action, err error) {
		errs <- err
	})

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrStoreClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("closed store did not answer")
	}
}
