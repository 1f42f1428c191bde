package models

type MovementType string

const (
	MovementTypeIn  MovementType = "IN"
	MovementTypeOut MovementType = "OUT"
)

type SourceType string

const (
	SourceTypeReceiving SourceType = "RECEIVING"
	SourceTypeTransfer  SourceType = "TRANSFER"
	SourceTypeSale      SourceType = "SALE"
	SourceTypeManual    SourceType = "MANUAL"
)

type ShipmentStatus string

const (
	ShipmentStatusPreparing ShipmentStatus = "Preparing"
	ShipmentStatusInTransit ShipmentStatus = "In Transit"
	ShipmentStatusArrived   ShipmentStatus = "Arrived"
	ShipmentStatusClosed    ShipmentStatus = "Closed"
)
