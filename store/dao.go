package store

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Dao struct {
	db *gorm.DB
}

func NewDao(url, scheme, user, passwd string) *Dao {
	dao := &Dao{}
	Logger := logger.Default
	Logger = Logger.LogMode(logger.Warn)
	db, err := gorm.Open(mysql.Open(user+":"+passwd+"@tcp("+url+")/"+
		scheme+"?charset=utf8"), &gorm.Config{Logger: Logger})
	if err != nil {
		panic(err)
	}
	err = db.AutoMigrate(&Settlement{}, &PoolEvent{})
	if err != nil {
		panic(err)
	}
	dao.db = db
	return dao
}

func (dao *Dao) SaveSettlement(settlement *Settlement) error {
	return dao.db.Create(settlement).Error
}

func (dao *Dao) SavePoolEvent(event *PoolEvent) error {
	return dao.db.Create(event).Error
}

func (dao *Dao) SelectSettlements(pool string) ([]*Settlement, error) {
	settlements := make([]*Settlement, 0)
	res := dao.db.Where("pool = ?", pool).Order("slot").Find(&settlements)
	return settlements, res.Error
}

func (dao *Dao) SelectPoolEvents(pool string) ([]*PoolEvent, error) {
	events := make([]*PoolEvent, 0)
	res := dao.db.Where("pool = ?", pool).Order("slot").Find(&events)
	return events, res.Error
}
