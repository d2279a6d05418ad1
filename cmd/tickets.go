package cmd

import (
	"fmt"
	"strings"
	"time"

	"ticket-checkout/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Manage ticket pools",
	}

	var (
		eventName  string
		ticketType string
		price      string
		quantity   int
		validFor   time.Duration
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket pool that buyers can purchase from",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(price)
			if err != nil || !amount.IsPositive() {
				return fmt.Errorf("invalid price %q", price)
			}
			if quantity < 1 {
				return fmt.Errorf("quantity must be at least 1")
			}
			if strings.TrimSpace(eventName) == "" {
				return fmt.Errorf("event name is required")
			}

			_, st, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if _, err := st.Migrate(cmd.Context()); err != nil {
				return err
			}

			now := time.Now().UTC()
			t := &models.Ticket{
				TicketKey:  uuid.NewString(),
				EventName:  eventName,
				TicketType: strings.ToUpper(ticketType),
				Price:      amount.Round(2),
				Quantity:   quantity,
				Status:     models.TicketActive,
				IssuedAt:   now,
			}
			if validFor > 0 {
				expires := now.Add(validFor)
				t.ExpiresAt = &expires
			}
			if err := st.CreateTicket(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created ticket pool %d: %s %s x%d at %s\n",
				t.ID, t.EventName, t.TicketType, t.Quantity, t.Price.StringFixed(2))
			return nil
		},
	}
	create.Flags().StringVar(&eventName, "event", "", "event name")
	create.Flags().StringVar(&ticketType, "type", models.DefaultTicketType, "ticket type")
	create.Flags().StringVar(&price, "price", "", "unit price, e.g. 25.00")
	create.Flags().IntVar(&quantity, "quantity", 0, "number of tickets in the pool")
	create.Flags().DurationVar(&validFor, "valid-for", 0, "expire the pool after this long")
	_ = create.MarkFlagRequired("event")
	_ = create.MarkFlagRequired("price")
	_ = create.MarkFlagRequired("quantity")

	cmd.AddCommand(create)
	return cmd
}
