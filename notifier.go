package bungeespoof

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/realDragonium/bungeespoof/forwarding"
)

var (
	handshakes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bungeespoof_handshakes_total",
		Help: "Outgoing handshakes seen by the interceptor, by outcome.",
	}, []string{"outcome"})
	truncations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bungeespoof_forwarding_truncations_total",
		Help: "Forwarded addresses cut to the handshake address limit.",
	})
)

// Notifier receives the diagnostics of the interceptor.
type Notifier interface {
	SpoofSkipped(res Result)
	SpoofApplied(res Result)
	SuffixTruncated(res Result, length int)
	SpoofFailed(serverAddr string, err error)
}

type NopNotifier struct{}

func (NopNotifier) SpoofSkipped(Result)         {}
func (NopNotifier) SpoofApplied(Result)         {}
func (NopNotifier) SuffixTruncated(Result, int) {}
func (NopNotifier) SpoofFailed(string, error)   {}

func NewLogNotifier(log logrus.FieldLogger) LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return LogNotifier{log: log}
}

type LogNotifier struct {
	log logrus.FieldLogger
}

func (n LogNotifier) SpoofSkipped(res Result) {
	n.log.WithField("server", res.ServerAddr).Warn("spoof skipped: not whitelisted")
}

func (n LogNotifier) SpoofApplied(res Result) {
	n.log.WithFields(logrus.Fields{
		"server":       res.ServerAddr,
		"forwarded_ip": res.ForwardedIP,
		"uuid":         res.Identity.String(),
		"uuid_source":  res.Identity.Source.String(),
	}).Infof("spoof applied: %s", res.ForwardedIP)
}

func (n LogNotifier) SuffixTruncated(res Result, length int) {
	n.log.WithFields(logrus.Fields{
		"server":       res.ServerAddr,
		"forwarded_ip": res.ForwardedIP,
		"length":       length,
		"limit":        forwarding.MaxAddressLength,
	}).Warn("forwarding suffix truncated")
}

func (n LogNotifier) SpoofFailed(serverAddr string, err error) {
	n.log.WithError(err).WithField("server", serverAddr).Warn("spoof failed, handshake sent unmodified")
}
