package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time capture.
// At 16kHz 16-bit mono = 32000 bytes/second
// 100ms chunks = 3200 bytes
const chunkSize = 3200
const chunkIntervalMs = 100

type clientMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

type serverMessage struct {
	Type   string          `json:"type"`
	Status string          `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket endpoint")
	tail := flag.Duration("tail", 3*time.Second, "How long to wait for trailing finals before stop")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	// Read and validate WAV header
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if sampleRate != 16000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 16000 Hz", sampleRate)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverURL)

	// Print server messages as they arrive.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg serverMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch {
			case msg.Error != "":
				log.Printf("[%s] error: %s", msg.Type, msg.Error)
			case msg.Status != "":
				log.Printf("[%s] %s", msg.Type, msg.Status)
			default:
				log.Printf("[%s] %s", msg.Type, msg.Data)
			}
			if msg.Type == "metrics" {
				return
			}
		}
	}()

	if err := conn.WriteJSON(clientMessage{Type: "start"}); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	chunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		chunkNum++
		totalBytes += int64(n)

		msg := clientMessage{
			Type:  "audio",
			Audio: base64.StdEncoding.EncodeToString(chunk[:n]),
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("Failed to send frame: %v", err)
		}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, elapsed)

	// Give slow providers a moment to finalize before stopping.
	time.Sleep(*tail)

	if err := conn.WriteJSON(clientMessage{Type: "stop"}); err != nil {
		log.Fatalf("Failed to stop session: %v", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Println("Timed out waiting for metrics")
	}
}
