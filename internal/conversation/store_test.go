package conversation

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"photoagent/internal/chat"
)

func TestTakeSelectionClearsLiveSelection(t *testing.T) {
	s := NewStore()
	s.SetSelection([]string{"a.jpg", "b.jpg", "a.jpg"})

	got := s.TakeSelection()
	if diff := cmp.Diff([]string{"a.jpg", "b.jpg"}, got); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
	if sel := s.Selection(); len(sel) != 0 {
		t.Fatalf("selection not cleared: %v", sel)
	}
	if again := s.TakeSelection(); again != nil {
		t.Fatalf("second take = %v, want nil", again)
	}
}

func TestEmptyCacheUpdatesAreIgnored(t *testing.T) {
	s := NewStore()
	s.SetLastSearch([]string{"x.jpg"})
	s.SetLastManual([]string{"y.jpg"})
	s.SetLastSearch(nil)
	s.SetLastManual([]string{})

	if got := s.LastSearch(); !cmp.Equal(got, []string{"x.jpg"}) {
		t.Fatalf("last search=%v", got)
	}
	if got := s.LastManual(); !cmp.Equal(got, []string{"y.jpg"}) {
		t.Fatalf("last manual=%v", got)
	}
}

func TestForgetRemovesFromBothCaches(t *testing.T) {
	s := NewStore()
	s.SetLastSearch([]string{"a.jpg", "b.jpg", "c.jpg"})
	s.SetLastManual([]string{"b.jpg", "d.jpg"})
	s.SetSelection([]string{"b.jpg"})

	s.Forget([]string{"b.jpg", "c.jpg"})

	snap := s.Snapshot()
	if !cmp.Equal(snap.LastSearch, []string{"a.jpg"}) {
		t.Fatalf("last search=%v", snap.LastSearch)
	}
	if !cmp.Equal(snap.LastManual, []string{"d.jpg"}) {
		t.Fatalf("last manual=%v", snap.LastManual)
	}
	if len(snap.Selection) != 0 {
		t.Fatalf("selection=%v", snap.Selection)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	s.Append(chat.Message{ID: "1", Sender: chat.SenderUser, Text: "hi", Images: []string{"img"}})

	snap := s.Snapshot()
	snap.Messages[0].Text = "changed"
	snap.Messages[0].Images[0] = "other"

	msgs := s.Messages()
	if msgs[0].Text != "hi" || msgs[0].Images[0] != "img" {
		t.Fatalf("store mutated through snapshot: %+v", msgs[0])
	}
}

func TestSubscribeDeliversLatestState(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Status != StatusIdle {
		t.Fatalf("initial status=%v", initial.Status)
	}

	s.SetStatus(StatusLoading)
	s.NotifyGalleryChanged()
	s.SetStatus(StatusIdle)

	latest := <-ch
	if latest.Status != StatusIdle || latest.GalleryVersion != 1 {
		t.Fatalf("latest=%+v", latest)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected buffered snapshot: %+v", extra)
	default:
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after cancel")
	}
}

func TestSubscribeAlwaysStartsWithSnapshot(t *testing.T) {
	s := NewStore()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.NotifyGalleryChanged()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		ch, cancel := s.Subscribe()
		select {
		case <-ch:
		default:
			close(stop)
			wg.Wait()
			t.Fatalf("subscription %d returned with an empty channel", i)
		}
		cancel()
	}
	close(stop)
	wg.Wait()
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusIdle:               "idle",
		StatusLoading:            "loading",
		StatusRequiresPermission: "requires_permission",
		Status(42):               "unknown",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Fatalf("%d: got %q want %q", int(st), st.String(), want)
		}
	}
}

func TestStatusTextRoundTrip(t *testing.T) {
	for _, st := range []Status{StatusIdle, StatusLoading, StatusRequiresPermission} {
		text, _ := st.MarshalText()
		var got Status
		if err := got.UnmarshalText(text); err != nil || got != st {
			t.Fatalf("%s: got %v err=%v", text, got, err)
		}
	}
	var st Status
	if err := st.UnmarshalText([]byte("busy")); err == nil {
		t.Fatalf("unknown status accepted")
	}
}
