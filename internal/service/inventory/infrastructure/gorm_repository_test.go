package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"meridian/internal/service/inventory/domain"
)

func newMockRepo(t *testing.T) (*GormInventoryRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		// 关掉隐式事务，SQL 期望才是确定的
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return NewGormInventoryRepository(db), mock
}

func inventoryRows(productID int64, quantity, reserved int, version int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "product_id", "quantity", "reserved_quantity", "version", "created_at", "updated_at"}).
		AddRow(1, productID, quantity, reserved, version, now, now)
}

func TestFindByProductID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT \\* FROM `inventory` WHERE product_id = \\?").
		WillReturnRows(inventoryRows(1001, 10, 2, 3))

	record, err := repo.FindByProductID(context.Background(), 1001)
	if err != nil {
		t.Fatalf("FindByProductID: %v", err)
	}
	if record.Quantity != 10 || record.ReservedQuantity != 2 || record.Version != 3 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindByProductIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT \\* FROM `inventory`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByProductID(context.Background(), 404)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestFindByProductIDForUpdateUsesRowLock(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `inventory` WHERE product_id = \\?.* FOR UPDATE").
		WillReturnRows(inventoryRows(1001, 10, 0, 1))
	mock.ExpectExec("UPDATE `inventory` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transaction(context.Background(), func(tx domain.Repository) error {
		record, err := tx.FindByProductIDForUpdate(context.Background(), 1001)
		if err != nil {
			return err
		}
		if err := record.Reserve(2); err != nil {
			return err
		}
		return tx.Save(context.Background(), record)
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveVersionConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	// 版本号不匹配时 0 行受影响
	mock.ExpectExec("UPDATE `inventory` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	record := &domain.Record{ID: 1, ProductID: 1001, Quantity: 9, Version: 2}
	err := repo.Save(context.Background(), record)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err=%v, want ErrVersionConflict", err)
	}
}

func TestSaveIncrementsVersion(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE `inventory` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	record := &domain.Record{ID: 1, ProductID: 1001, Quantity: 9, Version: 2}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if record.Version != 3 {
		t.Fatalf("version=%d, want 3", record.Version)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `inventory`").
		WillReturnRows(inventoryRows(1001, 1, 0, 1))
	mock.ExpectRollback()

	err := repo.Transaction(context.Background(), func(tx domain.Repository) error {
		record, err := tx.FindByProductIDForUpdate(context.Background(), 1001)
		if err != nil {
			return err
		}
		return record.Reserve(5) // 余量不足
	})
	if !errors.Is(err, domain.ErrInsufficientAvailability) {
		t.Fatalf("err=%v, want ErrInsufficientAvailability", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
