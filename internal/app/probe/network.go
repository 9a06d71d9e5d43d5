package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// probePayloadBytes is the nominal size of one HEAD round trip on the wire.
const probePayloadBytes = 1500

// TestNetwork probes every endpoint in parallel and averages the latencies that
// came in under the ceiling. With no usable probe the result is unmeasured and poor.
func (p *Probe) TestNetwork(ctx context.Context) domain.NetworkQuality {
	lat := make([]time.Duration, len(p.cfg.Endpoints))

	var g errgroup.Group
	for i, ep := range p.cfg.Endpoints {
		i, ep := i, ep
		g.Go(func() error {
			d, err := p.head(ctx, ep)
			switch {
			case err != nil:
				log.Debug().Str("module", "probe").Str("endpoint", ep).Err(err).Msg("network probe failed")
			case d >= p.cfg.Ceiling:
				log.Debug().Str("module", "probe").Str("endpoint", ep).Dur("latency", d).Msg("network probe too slow")
			default:
				lat[i] = d
			}
			return nil
		})
	}
	_ = g.Wait()

	var sum time.Duration
	var n int
	for _, d := range lat {
		if d > 0 {
			sum += d
			n++
		}
	}
	now := time.Now().UnixMilli()
	if n == 0 {
		return domain.NetworkQuality{
			RTTMs:              domain.RTTUnmeasured,
			Bucket:             domain.QualityPoor,
			LastUpdatedEpochMs: now,
		}
	}

	mean := sum / time.Duration(n)
	rtt := int(mean.Milliseconds())
	return domain.NetworkQuality{
		RTTMs:              rtt,
		BandwidthKbps:      bandwidthKbps(probePayloadBytes, mean),
		Bucket:             domain.BucketForRTT(rtt),
		LastUpdatedEpochMs: now,
	}
}

func (p *Probe) head(ctx context.Context, url string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	begin := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	d := time.Since(begin)
	if d <= 0 {
		d = time.Microsecond
	}
	return d, nil
}

func bandwidthKbps(bytes int, elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	return int(float64(bytes*8) / elapsed.Seconds() / 1000)
}
