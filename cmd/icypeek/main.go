// Command icypeek dumps the raw ICY metadata stream of a URL. Debug tool for
// adding a station to the catalog: it shows the response headers, the
// icy-metaint interval, and every metadata block as it arrives.
package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/edward-ap/radiowatch/internal/retriever"
)

func main() {
	blocks := flag.Int("blocks", 0, "stop after this many metadata blocks (0 = until interrupted)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: icypeek [-blocks n] <stream-url>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Arg(0), *blocks); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "icypeek:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url string, maxBlocks int) error {
	client := &http.Client{
		Transport: &http.Transport{
			ForceAttemptHTTP2: false,
			DialContext: (&net.Dialer{
				Timeout:   7 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 7 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS10},
		},
		// redirects are followed by hand so icy headers survive the hop
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := open(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	fmt.Println("=== Response Headers ===")
	for k, v := range resp.Header {
		fmt.Printf("%s: %s\n", k, strings.Join(v, ", "))
	}
	fmt.Println("========================")

	metaInt := 0
	fmt.Sscanf(resp.Header.Get("Icy-Metaint"), "%d", &metaInt)
	if metaInt <= 0 {
		return fmt.Errorf("no icy-metaint header, server does not send ICY metadata")
	}

	r := bufio.NewReader(resp.Body)
	audioBuf := make([]byte, 4096)
	metaBuf := make([]byte, 16*255)

	for block := 1; maxBlocks <= 0 || block <= maxBlocks; block++ {
		if err := skipAudio(ctx, r, audioBuf, metaInt); err != nil {
			return fmt.Errorf("audio read: %w", err)
		}
		lenByte, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("length read: %w", err)
		}
		if lenByte == 0 {
			block--
			continue
		}
		mlen := int(lenByte) * 16
		if _, err := io.ReadFull(r, metaBuf[:mlen]); err != nil {
			return fmt.Errorf("metadata read: %w", err)
		}
		raw := string(metaBuf[:mlen])
		if i := strings.IndexByte(raw, 0x00); i >= 0 {
			raw = raw[:i]
		}

		fmt.Printf("\n[Block %d] RAW: %q\n", block, raw)
		if title := retriever.ExtractStreamTitle(raw); title != "" {
			fmt.Printf("[Block %d] StreamTitle: %s\n", block, title)
		}
	}
	return nil
}

// open issues the probe request, following up to two redirect hops manually.
func open(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	for hop := 0; hop <= 2; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Icy-MetaData", "1")
		req.Header.Set("User-Agent", "icypeek/1.0")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return resp, nil
		}
		loc := resp.Header.Get("Location")
		resp.Body.Close()
		if loc == "" {
			return nil, fmt.Errorf("redirect without Location header")
		}
		url = loc
	}
	return nil, fmt.Errorf("too many redirects")
}

func skipAudio(ctx context.Context, r *bufio.Reader, buf []byte, n int) error {
	for n > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := n
		if chunk > len(buf) {
			chunk = len(buf)
		}
		read, err := io.ReadFull(r, buf[:chunk])
		n -= read
		if err != nil {
			return err
		}
	}
	return nil
}
