package store

type Settlement struct {
	Id          uint64 `gorm:"primaryKey;autoIncrement;type:bigint(20);not null"`
	TrxId       uint64 `gorm:"type:bigint(20);not null"`
	Pool        string `gorm:"type:varchar(48);not null"`
	Mint        string `gorm:"type:varchar(48);not null"`
	Side        string `gorm:"type:varchar(8);not null"`
	Units       uint64 `gorm:"type:bigint(20);not null"`
	Gross       uint64 `gorm:"type:bigint(20);not null"`
	LpFee       uint64 `gorm:"type:bigint(20);not null"`
	MakerFee    uint64 `gorm:"type:bigint(20);not null"`
	TakerFee    uint64 `gorm:"type:bigint(20);not null"`
	ReferralFee uint64 `gorm:"type:bigint(20);not null"`
	Royalty     uint64 `gorm:"type:bigint(20);not null"`
	NewSpot     uint64 `gorm:"type:bigint(20);not null"`
	Slot        uint64 `gorm:"type:bigint(20);not null"`
}

type PoolEvent struct {
	Id     uint64 `gorm:"primaryKey;autoIncrement;type:bigint(20);not null"`
	Pool   string `gorm:"type:varchar(48);not null"`
	Kind   string `gorm:"type:varchar(16);not null"`
	Mint   string `gorm:"type:varchar(48);not null"`
	Amount uint64 `gorm:"type:bigint(20);not null"`
	Slot   uint64 `gorm:"type:bigint(20);not null"`
}
