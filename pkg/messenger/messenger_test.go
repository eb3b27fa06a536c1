package messenger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/modgraph/pkg/protocol"
)

// start runs m until the test ends.
func start(t *testing.T, m *Messenger) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSendCorrelatedResponse(t *testing.T) {
	a, b := Pipe()
	host := New(a, nil)
	page := New(b, func(ctx context.Context, req protocol.Message) (protocol.Message, error) {
		switch req.(type) {
		case protocol.Serialize:
			return protocol.SerializeResponse{Result: json.RawMessage(`{"scale":1.5}`)}, nil
		case protocol.Initialize:
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected %s", req.Type())
	})
	start(t, host)
	start(t, page)

	ctx := context.Background()

	resp, err := host.Send(ctx, protocol.Serialize{})
	require.NoError(t, err)
	sr, ok := resp.(protocol.SerializeResponse)
	require.True(t, ok, "got %T", resp)
	assert.JSONEq(t, `{"scale":1.5}`, string(sr.Result))

	resp, err = host.Send(ctx, protocol.Initialize{})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 0, host.Pending())
}

func TestSendFireAndForget(t *testing.T) {
	a, b := Pipe()
	got := make(chan protocol.Message, 1)
	host := New(a, func(ctx context.Context, req protocol.Message) (protocol.Message, error) {
		got <- req
		return nil, nil
	})
	page := New(b, nil)
	start(t, host)
	start(t, page)

	resp, err := page.Send(context.Background(), protocol.Mod{Mod: "golang.org/x/mod"})
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, 0, page.Pending())

	select {
	case m := <-got:
		assert.Equal(t, protocol.Mod{Mod: "golang.org/x/mod"}, m)
	case <-time.After(time.Second):
		t.Fatal("handler never saw the request")
	}
}

func TestFireAndForgetKeepsSendOrder(t *testing.T) {
	const n = 500

	a, b := Pipe()
	var mu sync.Mutex
	var handled []string
	all := make(chan struct{})
	host := New(a, func(ctx context.Context, req protocol.Message) (protocol.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, req.(protocol.Mod).Mod)
		if len(handled) == n {
			close(all)
		}
		return nil, nil
	})
	page := New(b, nil)
	start(t, host)
	start(t, page)

	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("example.com/m%d", i)
		_, err := page.Send(context.Background(), protocol.Mod{Mod: want[i]})
		require.NoError(t, err)
	}

	select {
	case <-all:
	case <-time.After(5 * time.Second):
		t.Fatal("not every request was handled")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, handled)
}

// A slow fire-and-forget handler must not hold up correlated requests.
func TestSlowNotificationDoesNotBlockCalls(t *testing.T) {
	a, b := Pipe()
	release := make(chan struct{})
	defer close(release)
	host := New(a, func(ctx context.Context, req protocol.Message) (protocol.Message, error) {
		if _, ok := req.(protocol.Export); ok {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil, nil
	})
	page := New(b, nil)
	start(t, host)
	start(t, page)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := page.Send(ctx, protocol.Export{Image: "<svg/>"})
	require.NoError(t, err)
	resp, err := page.Send(ctx, protocol.Initialize{})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestSendRemoteError(t *testing.T) {
	a, b := Pipe()
	host := New(a, nil)
	page := New(b, func(ctx context.Context, req protocol.Message) (protocol.Message, error) {
		return nil, fmt.Errorf("view not ready")
	})
	start(t, host)
	start(t, page)

	_, err := host.Send(context.Background(), protocol.Serialize{})
	var re *RemoteError
	require.True(t, stderrors.As(err, &re), "err = %v", err)
	assert.Equal(t, "view not ready", re.Message)
}

func TestSendWithoutHandler(t *testing.T) {
	a, b := Pipe()
	host := New(a, nil)
	page := New(b, nil)
	start(t, host)
	start(t, page)

	_, err := host.Send(context.Background(), protocol.Initialize{})
	var re *RemoteError
	require.True(t, stderrors.As(err, &re), "err = %v", err)
}

// TestConcurrentRequestsAnyOrder answers K outstanding requests in a random
// permutation and checks that every caller gets its own answer exactly once.
func TestConcurrentRequestsAnyOrder(t *testing.T) {
	const k = 32

	a, peer := Pipe()
	m := New(a, nil)
	start(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make([]int, k)
	errs := make([]error, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf(`{"type":"serialize","n":%d}`, i))
			resp, err := m.call(ctx, payload)
			if err != nil {
				errs[i] = err
				return
			}
			var n int
			if err := json.Unmarshal(resp.(protocol.SerializeResponse).Result, &n); err != nil {
				errs[i] = err
				return
			}
			results[i] = n
		}(i)
	}

	type inbound struct {
		id uint64
		n  int
	}
	var reqs []inbound
	for len(reqs) < k {
		data, err := peer.Read(ctx)
		require.NoError(t, err)

		var env struct {
			ID      uint64 `json:"id"`
			Request struct {
				N int `json:"n"`
			} `json:"request"`
		}
		require.NoError(t, json.Unmarshal(data, &env))
		reqs = append(reqs, inbound{id: env.ID, n: env.Request.N})
	}

	ids := make(map[uint64]bool)
	for _, r := range reqs {
		assert.False(t, ids[r.id], "duplicate correlation id %d", r.id)
		ids[r.id] = true
	}

	rand.New(rand.NewSource(7)).Shuffle(len(reqs), func(i, j int) { reqs[i], reqs[j] = reqs[j], reqs[i] })
	for _, r := range reqs {
		frame := fmt.Sprintf(`{"id":%d,"response":{"type":"serializeResponse","result":%d}}`, r.id, r.n)
		require.NoError(t, peer.Write(ctx, []byte(frame)))
		// A second answer for the same id must be ignored.
		require.NoError(t, peer.Write(ctx, []byte(frame)))
	}

	wg.Wait()
	for i := 0; i < k; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, i, results[i], "caller %d got another caller's response", i)
	}
	assert.Equal(t, 0, m.Pending())
}

func TestUnknownResponseIgnored(t *testing.T) {
	a, peer := Pipe()
	m := New(a, nil)
	start(t, m)

	ctx := context.Background()
	require.NoError(t, peer.Write(ctx, []byte(`{"id":999,"response":null}`)))
	require.NoError(t, peer.Write(ctx, []byte(`not json`)))

	go func() {
		data, err := peer.Read(ctx)
		if err != nil {
			return
		}
		var env struct {
			ID uint64 `json:"id"`
		}
		_ = json.Unmarshal(data, &env)
		_ = peer.Write(ctx, []byte(fmt.Sprintf(`{"id":%d,"response":null}`, env.ID)))
	}()

	resp, err := m.Send(ctx, protocol.Initialize{})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestCloseFailsPendingCallers(t *testing.T) {
	const k = 8

	a, _ := Pipe()
	m := New(a, nil)
	start(t, m)

	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		go func() {
			_, err := m.Send(context.Background(), protocol.Serialize{})
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return m.Pending() == k }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Close())

	for i := 0; i < k; i++ {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("pending caller never failed")
		}
	}

	_, err := m.Send(context.Background(), protocol.Serialize{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Send(context.Background(), protocol.Mod{Mod: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPeerCloseFailsPendingCallers(t *testing.T) {
	a, peer := Pipe()
	m := New(a, nil)
	start(t, m)

	errc := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), protocol.Serialize{})
		errc <- err
	}()

	require.Eventually(t, func() bool { return m.Pending() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, peer.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("pending caller never failed")
	}

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("messenger did not shut down")
	}
}

func TestSendContextCancelled(t *testing.T) {
	a, _ := Pipe()
	m := New(a, nil)
	start(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Send(ctx, protocol.Serialize{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, m.Pending())
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := b.Read(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Write(context.Background(), []byte("x")), ErrClosed)
}
