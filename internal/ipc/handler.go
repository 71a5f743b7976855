package ipc

import (
	"context"
	"fmt"

	"github.com/bnema/omapdss/internal/driver"
	"github.com/bnema/omapdss/internal/output"
	"github.com/bnema/omapdss/internal/timing"
)

// DriverHandler serves requests from a running driver
type DriverHandler struct {
	drv *driver.Driver
}

// NewDriverHandler wraps drv, whose Run loop must be active
func NewDriverHandler(drv *driver.Driver) *DriverHandler {
	return &DriverHandler{drv: drv}
}

func (h *DriverHandler) Handle(ctx context.Context, req *Request) *Response {
	resp, err := h.handle(ctx, req)
	if resp == nil {
		resp = &Response{}
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	return resp
}

func (h *DriverHandler) handle(ctx context.Context, req *Request) (*Response, error) {
	switch req.Op {
	case OpStatus:
		st, err := h.drv.Status(ctx)
		if err != nil {
			return nil, err
		}
		return &Response{Status: &st}, nil

	case OpConnect:
		overlay, report, err := h.drv.Connect(ctx, req.Framebuffer, req.Overlay, req.Display, req.Apply)
		return &Response{Overlay: overlay, Report: report}, err

	case OpDisconnect:
		report, err := h.drv.Disconnect(ctx, req.Display, req.Apply)
		return &Response{Report: report}, err

	case OpApply:
		report, err := h.drv.Apply(ctx)
		return &Response{Report: report}, err

	case OpPlan:
		plan, err := h.drv.Plan(ctx)
		return &Response{Plan: plan}, err

	case OpFreeOverlay:
		overlay, err := h.drv.FreeOverlay(ctx)
		return &Response{Overlay: overlay}, err

	case OpSetMode:
		var mode *timing.Mode
		if req.Mode != "" {
			m, err := timing.ParseTimings(req.Mode)
			if err != nil {
				return nil, err
			}
			mode = &m
		}
		g, err := h.drv.SetMode(ctx, req.Display, mode)
		return &Response{Geometry: &g}, err

	case OpDPMS:
		level, err := output.ParsePower(req.Power)
		if err != nil {
			return nil, err
		}
		report, err := h.drv.DPMS(ctx, req.Display, level)
		return &Response{Report: report}, err

	case OpResize:
		return nil, h.drv.Resize(ctx, req.Width, req.Height)
	}

	return nil, fmt.Errorf("unknown op %q", req.Op)
}
