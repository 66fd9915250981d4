package flows

import "github.com/netkrida/myhome-sub001/pkg/domain"

// RoomFlow is the namespace of the room creation wizard.
const RoomFlow = "room-create"

// RoomStep is one slot of the room wizard aggregate.
type RoomStep interface {
	roomSlot() int
}

// RoomInfo is step 1 of the room wizard.
type RoomInfo struct {
	PropertyID string `json:"property_id" validate:"required"`
	RoomTypeID string `json:"room_type_id" validate:"required"`
	Number     string `json:"number" validate:"required,max=16"`
	Floor      int    `json:"floor" validate:"gte=0"`
}

// RoomFacilities is step 2 of the room wizard.
type RoomFacilities struct {
	Facilities []string `json:"facilities" validate:"min=1"`
	Images     []string `json:"images,omitempty" validate:"dive,url"`
}

// RoomPricing is step 3 of the room wizard. Prices are in rupiah.
type RoomPricing struct {
	MonthlyPrice int64 `json:"monthly_price" validate:"gt=0"`
	DailyPrice   int64 `json:"daily_price,omitempty" validate:"gte=0"`
	Deposit      int64 `json:"deposit,omitempty" validate:"gte=0"`
}

func (RoomInfo) roomSlot() int       { return 0 }
func (RoomFacilities) roomSlot() int { return 1 }
func (RoomPricing) roomSlot() int    { return 2 }

// RoomSubmission is the body posted once every step is complete.
type RoomSubmission struct {
	Info       RoomInfo       `json:"info"`
	Facilities RoomFacilities `json:"facilities"`
	Pricing    RoomPricing    `json:"pricing"`
}

// RoomAggregate encodes typed steps into an aggregate.
func RoomAggregate(steps ...RoomStep) (domain.Aggregate, error) {
	return encodeVariants(steps, RoomStep.roomSlot)
}

// Room returns the room creation flow.
func Room() *Definition {
	return &Definition{
		Name:     RoomFlow,
		Endpoint: "/api/rooms",
		Steps: []domain.StepDescriptor{
			{ID: "info", Title: "Room info", Persist: domain.PersistWithDraft},
			{ID: "facilities", Title: "Facilities"},
			{ID: "pricing", Title: "Pricing"},
		},
		payloads: []func() any{
			payload[RoomInfo](),
			payload[RoomFacilities](),
			payload[RoomPricing](),
		},
		bind: func(agg domain.Aggregate) (any, error) {
			var (
				sub RoomSubmission
				err error
			)
			if sub.Info, err = decodeSlot[RoomInfo](agg, 0); err != nil {
				return nil, err
			}
			if sub.Facilities, err = decodeSlot[RoomFacilities](agg, 1); err != nil {
				return nil, err
			}
			if sub.Pricing, err = decodeSlot[RoomPricing](agg, 2); err != nil {
				return nil, err
			}
			return &sub, nil
		},
	}
}
