package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "endereço do solver")
	image := flag.String("image", "test-pic-1.jpg", "imagem a enviar")
	n := flag.Int("n", 10, "quantidade de envios simultâneos")
	flag.Parse()

	resp, err := http.Get(*baseURL + "/health")
	if err != nil {
		fmt.Printf("Não foi possível conectar ao serviço em %s: %s\n", *baseURL, err)
		os.Exit(1)
	}
	resp.Body.Close()
	fmt.Printf("Health: %d\n", resp.StatusCode)

	data, err := os.ReadFile(*image)
	if err != nil {
		fmt.Printf("Imagem não encontrada: %s\n", *image)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 3 * time.Minute}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		byStatus = map[int]int{}
	)
	start := time.Now()
	for i := 0; i < *n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, body, err := send(client, *baseURL, filepath.Base(*image), data)
			if err != nil {
				fmt.Printf("[%02d] erro: %s\n", i, err)
				return
			}
			mu.Lock()
			byStatus[status]++
			mu.Unlock()

			if status != http.StatusOK {
				fmt.Printf("[%02d] %d %s\n", i, status, bytes.TrimSpace(body))
				return
			}
			var sol struct {
				Title    string              `json:"title"`
				Solution map[string]*float64 `json:"solution"`
			}
			_ = json.Unmarshal(body, &sol)
			fmt.Printf("[%02d] 200 %q %d incógnitas\n", i, sol.Title, len(sol.Solution))
		}(i)
	}
	wg.Wait()

	fmt.Printf("\n%d envios em %s\n", *n, time.Since(start).Round(time.Millisecond))
	for status, count := range byStatus {
		fmt.Printf("  %d: %d\n", status, count)
	}
}

func send(client *http.Client, baseURL, name string, data []byte) (int, []byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return 0, nil, err
	}
	if _, err := part.Write(data); err != nil {
		return 0, nil, err
	}
	if err := mw.Close(); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/solve-equation", &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}
