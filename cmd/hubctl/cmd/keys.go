package cmd

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/util"
	wtypes "perun.network/perun-hub-backend/wallet/types"
	"perun.network/perun-hub-backend/wire"
)

type (
	keyInfo struct {
		Address string `json:"address"`
		KeyFile string `json:"keyFile"`
	}

	stateHash struct {
		Hash common.Hash `json:"hash"`
		User string      `json:"signerUser,omitempty"`
		Hub  string      `json:"signerHub,omitempty"`
	}
)

func newKeygenCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a new user key",
		Long: `Create a random secp256k1 key and store it at the configured key file.
An existing key is never overwritten.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().String("out", "", "write the key here instead of the configured key file")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		path := rt.cfg.KeyFile
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			var err error
			if path, err = homedir.Expand(out); err != nil {
				return err
			}
		}
		acc, err := util.GenerateKeyFile(path)
		if err != nil {
			return err
		}
		return printJSON(cmd, keyInfo{Address: wtypes.Format(acc.Address()), KeyFile: path})
	}
	return cmd
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the canonical hash of a JSON channel state",
		Long: `Print the hash both parties sign for a channel state read from file or
stdin. Signers are recovered from the signatures that are present.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			return printStateHash(cmd, data)
		},
	}
}

func printStateHash(cmd *cobra.Command, data []byte) error {
	s, err := wire.UnmarshalChannelState(data)
	if err != nil {
		return err
	}
	var out stateHash
	if out.Hash, err = channel.HashChannelState(s.ChannelState); err != nil {
		return err
	}
	if len(s.SigUser) > 0 {
		addr, err := channel.Backend.RecoverChannelSigner(s.ChannelState, s.SigUser)
		if err != nil {
			return errors.WithMessage(err, "sigUser")
		}
		out.User = wtypes.Format(addr)
	}
	if len(s.SigHub) > 0 {
		addr, err := channel.Backend.RecoverChannelSigner(s.ChannelState, s.SigHub)
		if err != nil {
			return errors.WithMessage(err, "sigHub")
		}
		out.Hub = wtypes.Format(addr)
	}
	return printJSON(cmd, out)
}
