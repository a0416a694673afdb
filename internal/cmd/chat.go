package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pmteam/internal/assistant"
	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/mutation"
	"github.com/felixgeelhaar/pmteam/internal/store"
	"github.com/felixgeelhaar/pmteam/internal/ux"
)

type chatOptions struct {
	blocker  string
	mitigate bool
	order    []string
	statuses []string
}

func newChatCmd() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat <project> <run> [message...]",
		Short: "Send one chat turn to a run",
		Long: `Sends a message to the run's assistant. A turn may carry one plan
mutation, applied and saved before the reply is generated:

  --blocker "vendor delay" [--mitigate]   record a blocker
  --order T3,T1                           move tasks to the front
  --status T1=done --status T2=blocked    update task statuses`,
		Example: `  pmteam chat alpha 20250601T120000Z_launch "what should we focus on?"
  pmteam chat alpha 20250601T120000Z_launch --blocker "legal review" --mitigate`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			m, err := opts.mutation()
			if err != nil {
				return err
			}
			req := assistant.SendRequest{
				Ref:      store.RunRef{Project: args[0], Run: args[1]},
				Message:  strings.Join(args[2:], " "),
				Mutation: m,
			}
			return withApp(cmd, cc, func(a *app) error {
				res, err := a.service.SendMessage(cmd.Context(), req)
				if err != nil {
					return err
				}
				return cc.Emit(res, renderTurn(res))
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.blocker, "blocker", "", "record a blocker")
	flags.BoolVar(&opts.mitigate, "mitigate", false, "also add a mitigation task for the blocker")
	flags.StringSliceVar(&opts.order, "order", nil, "task ids to move to the front, in order")
	flags.StringArrayVar(&opts.statuses, "status", nil, "task status update as id=status, repeatable")
	return cmd
}

// mutation builds the turn's mutation from the flags. At most one kind may
// be given.
func (o chatOptions) mutation() (mutation.Mutation, error) {
	var picked []mutation.Mutation
	if o.blocker != "" {
		picked = append(picked, mutation.AddBlocker{Blocker: o.blocker, Mitigate: o.mitigate})
	} else if o.mitigate {
		return nil, errors.NewBadRequestError("--mitigate requires --blocker")
	}
	if len(o.order) > 0 {
		picked = append(picked, mutation.Reprioritize{Order: o.order})
	}
	if len(o.statuses) > 0 {
		statuses := make(map[string]string, len(o.statuses))
		for _, entry := range o.statuses {
			id, status, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(id) == "" {
				return nil, errors.NewInvalidMutationError(string(mutation.ModeUpdateStatus),
					"expected id=status, got "+entry)
			}
			statuses[strings.TrimSpace(id)] = status
		}
		picked = append(picked, mutation.UpdateStatus{Statuses: statuses})
	}

	switch len(picked) {
	case 0:
		return nil, nil
	case 1:
		return picked[0], nil
	default:
		return nil, errors.NewBadRequestError("only one of --blocker, --order, --status per turn")
	}
}

func renderTurn(res *assistant.SendResult) string {
	var b strings.Builder
	for _, update := range res.SystemUpdates {
		b.WriteString(ux.Muted("• %s", update))
		b.WriteString("\n")
	}
	b.WriteString(ux.RenderMessage(res.Reply))
	if res.Provenance.Degraded {
		b.WriteString("\n")
		b.WriteString(ux.Muted("(reply from %s tier, upstream intelligence unavailable)", res.Provenance.Tier))
	}
	return b.String()
}

func newConversationCmd() *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:     "conversation <project> <run>",
		Aliases: []string{"history"},
		Short:   "Show a run's transcript",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			if tail < 0 {
				return errors.NewBadRequestError("--tail must not be negative")
			}
			return withApp(cmd, cc, func(a *app) error {
				conv, err := a.service.GetConversation(cmd.Context(), store.RunRef{Project: args[0], Run: args[1]})
				if err != nil {
					return err
				}
				if tail > 0 {
					conv = conv.Tail(tail)
				}
				if conv == nil {
					conv = conversation.Conversation{}
				}
				return cc.Emit(conv, ux.RenderConversation(conv))
			})
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 0, "show only the last n messages")
	return cmd
}
