// Validação manual: dispara N POST /v1/orders concorrentes com a mesma
// Idempotency-Key e mostra quantos 201/200/409/429 voltaram e quantos ids
// distintos foram criados (esperado: um único id).
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "gateway base URL")
	tenant := flag.String("tenant", "tenant-C", "X-Tenant-Id")
	token := flag.String("token", os.Getenv("API_KEY"), "bearer token")
	key := flag.String("key", "", "Idempotency-Key (vazio gera um uuid)")
	n := flag.Int("n", 20, "requisições concorrentes")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if *key == "" {
		*key = uuid.NewString()
	}
	body, _ := json.Marshal(map[string]any{"item": "Feed", "amount": 100})
	client := &http.Client{Timeout: 10 * time.Second}

	var (
		mu       sync.Mutex
		statuses = map[int]int{}
		ids      = map[string]int{}
		wg       sync.WaitGroup
	)
	start := time.Now()
	for i := 0; i < *n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, *baseURL+"/v1/orders", bytes.NewReader(body))
			if err != nil {
				logger.Error("build request", "err", err)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Tenant-Id", *tenant)
			req.Header.Set("Idempotency-Key", *key)
			req.Header.Set("Authorization", "Bearer "+*token)

			resp, err := client.Do(req)
			if err != nil {
				logger.Error("request failed", "err", err)
				return
			}
			defer resp.Body.Close()
			raw, _ := io.ReadAll(resp.Body)

			var o struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(raw, &o)

			mu.Lock()
			statuses[resp.StatusCode]++
			if o.ID != "" {
				ids[o.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	logger.Info("done",
		"key", *key,
		"elapsed", time.Since(start).String(),
		"statuses", statuses,
		"distinct_ids", len(ids),
	)
	if len(ids) > 1 {
		logger.Error("more than one order created for the same key", "ids", ids)
		os.Exit(1)
	}
}
