package api

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/cloud"
	"github.com/jetsetgo/workshop-console/internal/config"
	"github.com/jetsetgo/workshop-console/internal/dashboard"
	"github.com/jetsetgo/workshop-console/internal/inspection"
	"github.com/jetsetgo/workshop-console/internal/realtime"
	"github.com/jetsetgo/workshop-console/internal/session"
)

// ChannelFactory opens a realtime channel for a credential
type ChannelFactory func(cfg *config.RealtimeConfig, token string) (realtime.Channel, error)

// Workspace is everything that lives for one signed-in session
type Workspace struct {
	Session     *session.Session
	Client      *cloud.Client
	Channel     realtime.Channel
	Dashboard   *dashboard.Reconciler
	Inspections *inspection.Flow

	cancel context.CancelFunc
	detach func()
}

// openWorkspace wires the session's components together and starts them
func openWorkspace(cfg *config.Config, backend *cloud.Client, sess *session.Session, newChannel ChannelFactory) (*Workspace, error) {
	ch, err := newChannel(&cfg.Realtime, sess.Token)
	if err != nil {
		return nil, err
	}

	client := backend.WithToken(sess.Token)
	ctx, cancel := context.WithCancel(context.Background())
	ws := &Workspace{
		Session:     sess,
		Client:      client,
		Channel:     ch,
		Dashboard:   dashboard.NewReconciler(client, &cfg.Dashboard),
		Inspections: inspection.NewFlow(client),
		cancel:      cancel,
	}

	go func() {
		if err := ws.Dashboard.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Dashboard loop stopped")
		}
	}()
	ws.detach = ws.Dashboard.Attach(ch, sess.Identity.ID)
	ch.Start()

	go func() {
		if err := ws.Dashboard.Load(ctx); err != nil {
			log.WithError(err).Debug("Initial dashboard load failed")
		}
	}()

	log.WithFields(log.Fields{
		"mechanic_id": sess.Identity.ID,
		"transport":   ch.Status().Transport,
	}).Info("Workspace opened")
	return ws, nil
}

// Close tears the workspace down in reverse order of opening
func (ws *Workspace) Close() {
	ws.detach()
	ws.Channel.Stop()
	ws.Dashboard.Close()
	ws.cancel()
	log.WithField("mechanic_id", ws.Session.Identity.ID).Info("Workspace closed")
}
