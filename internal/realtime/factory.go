package realtime

import (
	"fmt"

	"github.com/jetsetgo/workshop-console/internal/config"
)

// New builds the transport selected in cfg
func New(cfg *config.RealtimeConfig, token string) (Channel, error) {
	switch cfg.Transport {
	case "", "websocket":
		return NewWSClient(cfg, token), nil
	case "mqtt":
		if cfg.MQTTBroker == "" {
			return nil, fmt.Errorf("realtime transport mqtt needs mqtt_broker")
		}
		return NewMQTTClient(cfg, token), nil
	default:
		return nil, fmt.Errorf("unknown realtime transport %q", cfg.Transport)
	}
}
