package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// MaxLookupTimeout caps how long a handshake may wait for the remote tier.
const MaxLookupTimeout = 3 * time.Second

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bungeespoof_uuid_resolutions_total",
	Help: "Player identities resolved, by resolution tier.",
}, []string{"source"})

func NewResolver(lookup ProfileLookup, timeout time.Duration, log logrus.FieldLogger) Resolver {
	if timeout <= 0 || timeout > MaxLookupTimeout {
		timeout = MaxLookupTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return Resolver{
		lookup:  lookup,
		timeout: timeout,
		log:     log,
	}
}

// Resolver never fails: every tier that cannot answer hands over to the
// next one, ending at the offline derivation.
type Resolver struct {
	lookup  ProfileLookup
	timeout time.Duration
	log     logrus.FieldLogger
}

func (r Resolver) Resolve(ctx context.Context, session Session) PlayerIdentity {
	var id PlayerIdentity
	if sessionID, ok := session.UUID(); ok {
		id = PlayerIdentity{UUID: sessionID, Source: SourceSession}
	} else {
		id = r.resolveUnauthenticated(ctx, session.Username())
	}
	resolutions.WithLabelValues(id.Source.String()).Inc()
	return id
}

// ResolveName resolves a player that has no authenticated session.
func (r Resolver) ResolveName(ctx context.Context, username string) PlayerIdentity {
	return r.Resolve(ctx, StaticSession{Name: username})
}

func (r Resolver) resolveUnauthenticated(ctx context.Context, username string) PlayerIdentity {
	if r.lookup != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		id, err := r.lookup.LookupUUID(lookupCtx, username)
		cancel()
		if err == nil && id != uuid.Nil {
			return PlayerIdentity{UUID: id, Source: SourceRemoteLookup}
		}
		r.log.WithError(err).WithField("username", username).Debug("profile lookup failed, using offline uuid")
	}
	return PlayerIdentity{UUID: OfflineUUID(username), Source: SourceOfflineDerived}
}
