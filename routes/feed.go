package routes

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust this for production
	},
}

// Connected clients map with mutex for thread safety
var feedClients = make(map[*websocket.Conn]bool)
var broadcast = make(chan []byte, 100) // Buffered channel to prevent blocking
var feedMutex = &sync.Mutex{}
var broadcasterOnce sync.Once

// ItemEvent is one entry on the live catalog feed.
type ItemEvent struct {
	Event  string    `json:"event"`
	ItemID uint      `json:"item_id"`
	At     time.Time `json:"at"`
}

// BroadcastItemEvent pushes an item lifecycle event to every feed
// subscriber. Never blocks the caller; the event is dropped if the
// buffer is full.
func BroadcastItemEvent(event string, itemID uint) {
	payload, err := json.Marshal(ItemEvent{Event: event, ItemID: itemID, At: time.Now()})
	if err != nil {
		return
	}
	select {
	case broadcast <- payload:
	default:
		log.Println("Feed buffer full, dropping event:", event)
	}
}

func feedHandler() fiber.Handler {
	return adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("Error upgrading:", err)
			return
		}
		defer conn.Close()

		feedMutex.Lock()
		feedClients[conn] = true
		feedMutex.Unlock()
		log.Println("Feed client connected:", conn.RemoteAddr())

		// The feed is one-way; reads only detect disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket read error: %v", err)
				}
				feedMutex.Lock()
				delete(feedClients, conn)
				feedMutex.Unlock()
				log.Println("Feed client disconnected:", conn.RemoteAddr())
				break
			}
		}
	})
}

// startBroadcaster fans events out to all connected clients.
func startBroadcaster() {
	broadcasterOnce.Do(func() {
		go func() {
			for message := range broadcast {
				feedMutex.Lock()
				for client := range feedClients {
					err := client.WriteMessage(websocket.TextMessage, message)
					if err != nil {
						log.Printf("WebSocket write error: %v", err)
						client.Close()
						delete(feedClients, client)
					}
				}
				feedMutex.Unlock()
			}
		}()
	})
}
