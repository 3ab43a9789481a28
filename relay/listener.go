package relay

import (
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cloudflare/tableflip"
	"github.com/pires/go-proxyproto"
	"github.com/sirupsen/logrus"

	"github.com/realDragonium/bungeespoof/config"
)

// Listen opens the relay listener. When tableflip is in use the returned
// upgrader is non-nil and the caller has to call Ready on it once serving.
func Listen(cfg config.RelayConfig, log logrus.FieldLogger) (net.Listener, *tableflip.Upgrader, error) {
	var ln net.Listener
	var upg *tableflip.Upgrader
	var err error
	if cfg.UseTableflip && runtime.GOOS != "windows" {
		upg, err = tableflip.New(tableflip.Options{
			PIDFile: cfg.PidFile,
		})
		if err != nil {
			return nil, nil, err
		}
		go upgradeOnSignal(upg, log)
		ln, err = upg.Listen("tcp", cfg.ListenTo)
		if err != nil {
			upg.Stop()
			return nil, nil, err
		}
	} else {
		ln, err = net.Listen("tcp", cfg.ListenTo)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.AcceptProxyProtocol {
		ln = &proxyproto.Listener{
			Listener: ln,
			Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
				return proxyproto.REQUIRE, nil
			},
		}
	}
	return ln, upg, nil
}

func upgradeOnSignal(upg *tableflip.Upgrader, log logrus.FieldLogger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	for range sig {
		log.Info("upgrading relay process")
		if err := upg.Upgrade(); err != nil {
			log.WithError(err).Error("upgrade failed")
		}
	}
}
