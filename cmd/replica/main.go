// Command replica is a terminal stand-in for a device: it obtains a token,
// connects to /ws and prints every reply.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-relay/utils/log"
)

const defaultServerURL = "http://localhost:8080"

type reply struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func main() {
	gotenv.Load()

	server := getenv("RELAY_URL", defaultServerURL)
	token, err := fetchToken(server)
	if err != nil {
		log.L().Fatal("Failed to get token", zap.Error(err))
	}

	wsURL, err := websocketURL(server)
	if err != nil {
		log.L().Fatal("Invalid RELAY_URL", zap.Error(err))
	}
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		log.L().Fatal("Failed to connect to server", zap.Error(err))
	}
	defer conn.Close()

	go func() {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				log.L().Info("Connection closed", zap.Error(err))
				os.Exit(0)
			}
			var r reply
			if err := json.Unmarshal(frame, &r); err != nil {
				fmt.Printf("\n< %s\n> ", frame)
				continue
			}
			switch r.Type {
			case "reply":
				fmt.Printf("\n< %v\n> ", r.Data["text"])
			default:
				fmt.Printf("\n[%s] %v\n> ", r.Type, r.Data)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		os.Exit(0)
	}()

	reader := bufio.NewScanner(os.Stdin)
	fmt.Println("Type a message and press enter (type 'exit' to quit):")
	fmt.Print("> ")
	for reader.Scan() {
		text := strings.TrimSpace(reader.Text())
		if text == "exit" {
			break
		}
		if text == "" {
			fmt.Print("> ")
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			log.L().Error("Error sending message", zap.Error(err))
			break
		}
	}
}

func fetchToken(server string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"user_id":      getenv("REPLICA_USER_ID", "replica"),
		"display_name": getenv("REPLICA_DISPLAY_NAME", "Replica"),
		"device_id":    getenv("REPLICA_DEVICE_ID", "replica-1"),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(server, "/")+"/api/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", os.Getenv("API_CLIENT_KEY"))
	req.Header.Set("X-API-Secret", os.Getenv("API_CLIENT_SECRET"))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: %s", resp.Status)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding token: %w", err)
	}
	return out.Token, nil
}

func websocketURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
