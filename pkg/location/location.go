package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

var (
	// ErrPermissionDenied 定位权限被拒绝
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrUnavailable 当前无法获得定位
	ErrUnavailable = errors.New("location unavailable")
)

// Fix 一次定位结果
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Provider 定位能力，调用方负责通过 ctx 限制等待时间
type Provider interface {
	CurrentPosition(ctx context.Context) (Fix, error)
}

// StaticProvider 返回配置的固定坐标
type StaticProvider struct {
	fix   Fix
	known bool
}

func NewStaticProvider(latitude, longitude float64, known bool) *StaticProvider {
	return &StaticProvider{fix: Fix{Latitude: latitude, Longitude: longitude}, known: known}
}

func (p *StaticProvider) CurrentPosition(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	if !p.known {
		return Fix{}, ErrUnavailable
	}
	return p.fix, nil
}

// HTTPProvider 从本地定位服务读取 {"latitude","longitude"}
type HTTPProvider struct {
	client   *client.Client
	endpoint string
}

func NewHTTPProvider(endpoint string) (*HTTPProvider, error) {
	c, err := client.NewClient(client.WithDialTimeout(3 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create location client: %w", err)
	}
	return &HTTPProvider{client: c, endpoint: endpoint}, nil
}

func (p *HTTPProvider) CurrentPosition(ctx context.Context) (Fix, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(p.endpoint)
	req.SetMethod(consts.MethodGet)
	req.Header.Set("Accept", "application/json")

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = p.client.DoDeadline(ctx, req, resp, deadline)
	} else {
		err = p.client.Do(ctx, req, resp)
	}
	if err != nil {
		return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code == consts.StatusUnauthorized || code == consts.StatusForbidden:
		return Fix{}, ErrPermissionDenied
	case code != consts.StatusOK:
		return Fix{}, fmt.Errorf("%w: location service returned %d", ErrUnavailable, code)
	}

	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Fix{}, fmt.Errorf("%w: invalid location payload: %v", ErrUnavailable, err)
	}
	if body.Latitude == nil || body.Longitude == nil {
		return Fix{}, fmt.Errorf("%w: location payload missing coordinates", ErrUnavailable)
	}
	return Fix{Latitude: *body.Latitude, Longitude: *body.Longitude}, nil
}

// New 按名称创建定位能力
func New(kind, endpoint string, latitude, longitude float64, known bool) (Provider, error) {
	switch kind {
	case "http":
		return NewHTTPProvider(endpoint)
	case "static", "":
		return NewStaticProvider(latitude, longitude, known), nil
	default:
		return nil, fmt.Errorf("unsupported location provider: %s", kind)
	}
}
