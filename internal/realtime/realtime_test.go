package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jetsetgo/workshop-console/internal/config"
)

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()

	var got []string
	unsubA := hub.Subscribe(func(e Event) { got = append(got, "a:"+e.Name) })
	unsubB := hub.Subscribe(func(e Event) { got = append(got, "b:"+e.Name) })
	assert.Equal(t, 2, hub.Len())

	hub.Dispatch(Event{Name: EventConnect})
	assert.Equal(t, []string{"a:connect", "b:connect"}, got)

	unsubA()
	unsubA()
	assert.Equal(t, 1, hub.Len())

	hub.Dispatch(Event{Name: EventDisconnect})
	assert.Equal(t, "b:disconnect", got[len(got)-1])

	unsubB()
	assert.Equal(t, 0, hub.Len())
}

func TestPayload_BookingRef(t *testing.T) {
	assert.Equal(t, "b1", Payload{BookingID: "b1", ID: "x"}.BookingRef())
	assert.Equal(t, "x", Payload{ID: "x"}.BookingRef())
	assert.Equal(t, "", Payload{}.BookingRef())
}

func TestDecodeFrame(t *testing.T) {
	e, ok := decodeFrame([]byte(`{"event":"new_booking","data":{"bookingId":"b-1","customerName":"Asha"}}`))
	require.True(t, ok)
	assert.Equal(t, EventNewBooking, e.Name)
	assert.Equal(t, "b-1", e.Payload.BookingRef())
	assert.Equal(t, "Asha", e.Payload.CustomerName)

	_, ok = decodeFrame([]byte(`{"event":"pong"}`))
	assert.False(t, ok)

	_, ok = decodeFrame([]byte(`not json`))
	assert.False(t, ok)

	_, ok = decodeFrame([]byte(`{"event":"mystery"}`))
	assert.False(t, ok)
}

func TestDecodeMQTT(t *testing.T) {
	e, ok := decodeMQTT("workshop", "workshop/events/booking_update", []byte(`{"id":"b-2"}`))
	require.True(t, ok)
	assert.Equal(t, EventBookingUpdate, e.Name)
	assert.Equal(t, "b-2", e.Payload.BookingRef())

	_, ok = decodeMQTT("workshop", "other/events/booking_update", nil)
	assert.False(t, ok)

	_, ok = decodeMQTT("workshop", "workshop/events/unknown", nil)
	assert.False(t, ok)
}

func TestNew_SelectsTransport(t *testing.T) {
	ch, err := New(&config.RealtimeConfig{Transport: "websocket"}, "t")
	require.NoError(t, err)
	assert.IsType(t, &WSClient{}, ch)

	_, err = New(&config.RealtimeConfig{Transport: "mqtt"}, "t")
	assert.Error(t, err)

	ch, err = New(&config.RealtimeConfig{Transport: "mqtt", MQTTBroker: "tcp://127.0.0.1:1883", MQTTTopicPrefix: "workshop"}, "t")
	require.NoError(t, err)
	assert.IsType(t, &MQTTClient{}, ch)

	_, err = New(&config.RealtimeConfig{Transport: "carrier-pigeon"}, "t")
	assert.Error(t, err)
}

func TestWSClient_EmitWhileDisconnected(t *testing.T) {
	c := NewWSClient(&config.RealtimeConfig{WSEndpoint: "ws://127.0.0.1:1"}, "")
	assert.ErrorIs(t, c.Emit(EventRegisterMechanic, "m-1"), ErrNotConnected)
}

func TestWSClient_EndToEnd(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan envelope, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"new_booking","data":{"bookingId":"b-42","customerName":"Asha"}}`))

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env envelope
			if json.Unmarshal(msg, &env) == nil {
				received <- env
			}
		}
	}))
	defer server.Close()

	cfg := &config.RealtimeConfig{
		WSEndpoint:       "ws" + strings.TrimPrefix(server.URL, "http"),
		WSReconnectDelay: 50 * time.Millisecond,
		WSMaxReconnect:   200 * time.Millisecond,
		WSPingInterval:   time.Hour,
	}
	c := NewWSClient(cfg, "tok")

	var mu sync.Mutex
	var events []Event
	c.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		if e.Name == EventConnect {
			assert.NoError(t, c.Emit(EventRegisterMechanic, "m-1"))
		}
	})

	c.Start()
	defer c.Stop()

	select {
	case env := <-received:
		assert.Equal(t, EventRegisterMechanic, env.Event)
		assert.JSONEq(t, `"m-1"`, string(env.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("register_mechanic was not sent")
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e.Name == EventNewBooking && e.Payload.BookingRef() == "b-42" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, c.Status().Connected)
	assert.Equal(t, "websocket", c.Status().Transport)
}
