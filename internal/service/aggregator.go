package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"solarkiosk/internal/domain"
	"solarkiosk/pkg/logger"
)

// Vendor endpoints consumed by the aggregator.
const (
	EndpointDeviceList = "/device/list"
	EndpointLatestData = "/device/data/latest"
	EndpointAlarmList  = "/device/alarm/list"
)

// Fetcher issues one authenticated vendor call. Satisfied by *upstream.Client.
type Fetcher interface {
	Request(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)
}

// Aggregator builds the dashboard payload: the vendor device tree with every
// node enriched by its latest readings and active alarms.
type Aggregator struct {
	fetcher Fetcher
	limit   int
}

// NewAggregator creates an aggregator. limit bounds the enrichment fan-out.
func NewAggregator(fetcher Fetcher, limit int) *Aggregator {
	if limit < 1 {
		limit = 1
	}
	return &Aggregator{fetcher: fetcher, limit: limit}
}

type listEnvelope struct {
	Code int              `json:"code"`
	Msg  string           `json:"msg"`
	Data []*domain.Device `json:"data"`
}

type latestEnvelope struct {
	Data map[string]float64 `json:"data"`
}

type alarmEnvelope struct {
	Data []domain.Alarm `json:"data"`
}

// BuildDashboard fetches the device list and enriches every device and
// sub-device concurrently. Only a device-list failure is fatal; enrichment
// failures degrade to empty data/alarms, and a sub-device whose enrichment
// fails keeps its place in the result with an error marker.
func (a *Aggregator) BuildDashboard(ctx context.Context) ([]*domain.Device, error) {
	payload, err := a.fetcher.Request(ctx, EndpointDeviceList, nil)
	if err != nil {
		return nil, fmt.Errorf("device list: %w", err)
	}

	var env listEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}

	devices := env.Data
	if devices == nil {
		devices = []*domain.Device{}
	}

	var g errgroup.Group
	g.SetLimit(a.limit)

	for _, dev := range devices {
		dev := dev
		g.Go(func() error {
			a.enrich(ctx, dev, false)
			return nil
		})
		for _, sub := range dev.Sublist {
			sub := sub
			g.Go(func() error {
				a.enrich(ctx, sub, true)
				return nil
			})
		}
	}

	// Join barrier: enrichment goroutines never return errors, they record
	// failures on the device records instead.
	g.Wait()

	return devices, nil
}

// enrich fetches latest data and alarms for one device, concurrently. Each
// sub-fetch degrades independently to an empty default on failure. Failed
// sub-devices additionally carry an error marker so the display can flag
// them without dropping the node.
func (a *Aggregator) enrich(ctx context.Context, dev *domain.Device, isSub bool) {
	var (
		g         errgroup.Group
		latestErr error
		alarmErr  error
	)

	g.Go(func() error {
		dev.LatestData, latestErr = a.fetchLatest(ctx, dev.ID)
		return nil
	})
	g.Go(func() error {
		dev.Alarms, alarmErr = a.fetchAlarms(ctx, dev.ID)
		return nil
	})
	g.Wait()

	if dev.LatestData == nil {
		dev.LatestData = map[string]float64{}
	}
	if dev.Alarms == nil {
		dev.Alarms = []domain.Alarm{}
	}

	if latestErr != nil {
		logger.Warnf("latest data unavailable for %s: %v", dev.ID, latestErr)
	}
	if alarmErr != nil {
		logger.Warnf("alarms unavailable for %s: %v", dev.ID, alarmErr)
	}

	if isSub {
		if latestErr != nil {
			dev.Error = latestErr.Error()
		} else if alarmErr != nil {
			dev.Error = alarmErr.Error()
		}
	}
}

func (a *Aggregator) fetchLatest(ctx context.Context, deviceID string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("deviceId", deviceID)

	payload, err := a.fetcher.Request(ctx, EndpointLatestData, params)
	if err != nil {
		return nil, err
	}

	var env latestEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode latest data: %w", err)
	}
	return env.Data, nil
}

func (a *Aggregator) fetchAlarms(ctx context.Context, deviceID string) ([]domain.Alarm, error) {
	params := url.Values{}
	params.Set("deviceId", deviceID)

	payload, err := a.fetcher.Request(ctx, EndpointAlarmList, params)
	if err != nil {
		return nil, err
	}

	var env alarmEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode alarm list: %w", err)
	}
	return env.Data, nil
}
