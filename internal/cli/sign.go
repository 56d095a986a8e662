package cli

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtroode/soldojo-ledger/internal/api/grpc/handler"
	"github.com/dtroode/soldojo-ledger/internal/token"
)

// SignedToken is the output of the sign command.
type SignedToken struct {
	Method string `json:"method"`
	Token  string `json:"token"`
}

func (s SignedToken) String() string {
	return s.Token
}

var signableMethods = map[string]string{
	"init-profile":      handler.MethodInitProfile,
	"record-completion": handler.MethodRecordCompletion,
	"get-profile":       handler.MethodGetProfile,
	"get-completion":    handler.MethodGetCompletion,
	"get-certificate":   handler.MethodGetCertificate,
}

// NewSignCommand signs an instruction envelope with a learner keypair file.
func NewSignCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		keypairPath string
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sign <init-profile|record-completion|get-profile|get-completion|get-certificate>",
		Short: "Sign an instruction envelope for a Ledger call",
		Long: `Sign an instruction envelope with the learner's keypair.

The keypair file holds the 64-byte ed25519 secret key as a JSON array of
numbers. Pass the printed token as "authorization: Bearer <token>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)

			method, ok := signableMethods[args[0]]
			if !ok {
				return out.Error(fmt.Errorf("unknown instruction %q", args[0]))
			}

			priv, err := readKeypair(keypairPath)
			if err != nil {
				return out.Error(err)
			}

			signed, err := token.Sign(priv, method, time.Now(), ttl)
			if err != nil {
				return out.Error(err)
			}

			return out.Success(SignedToken{Method: method, Token: signed})
		},
	}

	cmd.Flags().StringVarP(&keypairPath, "keypair", "k", "", "path to the learner keypair file")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Minute, "envelope lifetime")
	_ = cmd.MarkFlagRequired("keypair")

	return cmd
}

func readKeypair(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair: %w", err)
	}

	var (
		numbers []int
		secret  []byte
	)
	if err := json.Unmarshal(raw, &numbers); err != nil {
		return nil, fmt.Errorf("failed to parse keypair: %w", err)
	}
	for _, n := range numbers {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("failed to parse keypair: byte value %d out of range", n)
		}
		secret = append(secret, byte(n))
	}

	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair must hold %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}

	priv := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !priv.Equal(ed25519.PrivateKey(secret)) {
		return nil, fmt.Errorf("keypair public half does not match its seed")
	}

	return priv, nil
}
