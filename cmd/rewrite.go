package cmd

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/realDragonium/bungeespoof"
	"github.com/realDragonium/bungeespoof/config"
	"github.com/realDragonium/bungeespoof/forwarding"
	"github.com/realDragonium/bungeespoof/identity"
	"github.com/realDragonium/bungeespoof/mc"
)

type rewriteOptions struct {
	address  string
	port     uint16
	intent   int
	protocol int
	username string
	server   string
	offline  bool
}

func newRewriteCmd(configFile *string) *cobra.Command {
	opts := rewriteOptions{}
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Show what the configured policy does to a handshake",
		Long: `Build a handshake from the flags, run it through the configured spoof policy
and print the result next to the forwarding fields a backend would read.

Examples:
  bungeespoof rewrite --address mc.hypixel.net --username Notch
  bungeespoof rewrite --address play.example.com --port 25565 --intent 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOrDefault(*configFile)
			if err != nil {
				return err
			}
			if opts.offline {
				cfg.Lookup.Enabled = false
			}
			return runRewrite(cmd, cfg, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.address, "address", "", "server address in the handshake (required)")
	cmd.Flags().Uint16Var(&opts.port, "port", 25565, "server port in the handshake")
	cmd.Flags().IntVar(&opts.intent, "intent", mc.LoginState, "handshake intent: 1 status, 2 login, 3 transfer")
	cmd.Flags().IntVar(&opts.protocol, "protocol", 767, "protocol version")
	cmd.Flags().StringVar(&opts.username, "username", "", "player name (defaults to session.username)")
	cmd.Flags().StringVar(&opts.server, "server", "", "whitelist key, defaults to address:port")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "skip the profile lookup")
	cmd.MarkFlagRequired("address")
	return cmd
}

func runRewrite(cmd *cobra.Command, cfg config.Config, opts rewriteOptions, out io.Writer) error {
	session, err := newSession(cfg.Session)
	if err != nil {
		return err
	}
	if opts.username != "" {
		session = identity.StaticSession{Name: opts.username}
	}
	hs := mc.ServerBoundHandshake{
		ProtocolVersion: opts.protocol,
		ServerAddress:   opts.address,
		ServerPort:      opts.port,
		NextState:       opts.intent,
	}
	server := opts.server
	if server == "" {
		server = hs.HostPort()
	}

	rewritten, res, err := bungeespoof.Rewrite(cmd.Context(), hs, server, cfg.Policy, session, newResolver(cfg))
	if err != nil {
		return fmt.Errorf("rewrite failed: %w", err)
	}

	fmt.Fprintf(out, "outcome:  %s\n", res.Outcome)
	fmt.Fprintf(out, "address:  %q\n", rewritten.ServerAddress)
	fmt.Fprintf(out, "port:     %d\n", rewritten.ServerPort)
	fmt.Fprintf(out, "packet:   %s\n", hex.EncodeToString(rewritten.Marshal().Marshal()))
	if res.Outcome != bungeespoof.Applied {
		return nil
	}
	if res.Truncated {
		fmt.Fprintf(out, "warning:  address truncated to %d characters\n", forwarding.MaxAddressLength)
	}
	fmt.Fprintf(out, "uuid:     %s (%s)\n", res.Identity.UUID, res.Identity.Source)
	if fwd, ok := forwarding.Parse(rewritten.ServerAddress); ok {
		fmt.Fprintf(out, "backend sees host=%s ip=%s uuid=%s\n", fwd.Host, fwd.ForwardedIP, fwd.UUID)
	}
	return nil
}
