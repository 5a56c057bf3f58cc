package app

import (
	"context"
	"fmt"

	"mask-calibrator/internal/config"
	"mask-calibrator/internal/gui/desktop"
	"mask-calibrator/internal/gui/highgui"
	"mask-calibrator/internal/gui/web"
	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/session"

	fyneapp "fyne.io/fyne/v2/app"
)

// Surface is a review surface that also owns an event loop. Run blocks on the
// calling goroutine until ctx ends or the operator closes the surface.
type Surface interface {
	session.Surface
	Run(ctx context.Context) error
}

func newSurface(cfg *config.Config, initialUnits int, log logger.Logger) (Surface, error) {
	switch cfg.Review.Surface {
	case config.SurfaceWindow:
		return highgui.New(cfg.Review.WindowTitle, cfg.ConfirmRune(), initialUnits, log), nil
	case config.SurfaceDesktop:
		return desktop.New(fyneapp.NewWithID(AppID), cfg.Review.WindowTitle, cfg.ConfirmRune(), initialUnits, log), nil
	case config.SurfaceWeb:
		return web.New(cfg.Web.Addr, cfg.ConfirmRune(), initialUnits, log), nil
	default:
		return nil, fmt.Errorf("unknown review surface %q", cfg.Review.Surface)
	}
}
