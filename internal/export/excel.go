package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"innkeeper/internal/config"
	"innkeeper/internal/database"
	"innkeeper/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const bookingsSheet = "Bookings"
const occupancySheet = "Occupancy"

// Service writes periodic Excel snapshots of the reservation ledger so
// staff can review occupancy without touching the database.
type Service struct {
	db       *database.DB
	config   config.ExportConfig
	capacity int
	logger   *zerolog.Logger
}

func NewService(db *database.DB, cfg config.ExportConfig, capacity int, logger *zerolog.Logger) *Service {
	return &Service{
		db:       db,
		config:   cfg,
		capacity: capacity,
		logger:   logger,
	}
}

// Start runs scheduled exports until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("export service is disabled")
		return
	}

	interval := 24 * time.Hour
	if s.config.Schedule != "" {
		if d, err := time.ParseDuration(s.config.Schedule); err == nil {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("bad export schedule, using 24h")
		}
	}
	s.logger.Info().Dur("interval", interval).Msg("export service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExportBookings(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduled export failed")
			}
		}
	}
}

// ExportBookings writes every booking plus a per-date occupancy summary to
// an xlsx file and returns its path.
func (s *Service) ExportBookings(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.Path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	bookings, err := s.db.AllBookings(ctx)
	if err != nil {
		return "", fmt.Errorf("load bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	headers := []string{"Date", "Room", "User", "Code", "Created"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, header)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}

	for i, booking := range bookings {
		row := i + 2
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("A%d", row), booking.Date)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("B%d", row), booking.Room)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("C%d", row), booking.User)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("D%d", row), booking.Code)
		_ = f.SetCellValue(bookingsSheet, fmt.Sprintf("E%d", row), booking.CreatedAt.Format("02.01.2006 15:04"))
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 10)
	_ = f.SetColWidth(bookingsSheet, "B", "B", 8)
	_ = f.SetColWidth(bookingsSheet, "C", "C", 20)
	_ = f.SetColWidth(bookingsSheet, "D", "D", 10)
	_ = f.SetColWidth(bookingsSheet, "E", "E", 20)

	if err := s.writeOccupancy(f, bookings, headerStyle); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(s.config.Path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save export: %w", err)
	}

	s.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("bookings export created")
	return filePath, nil
}

func (s *Service) writeOccupancy(f *excelize.File, bookings []*models.Booking, headerStyle int) error {
	if _, err := f.NewSheet(occupancySheet); err != nil {
		return fmt.Errorf("create occupancy sheet: %w", err)
	}

	for i, header := range []string{"Date", "Booked", "Capacity"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(occupancySheet, cell, header)
		_ = f.SetCellStyle(occupancySheet, cell, cell, headerStyle)
	}

	fullStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})

	// Bookings arrive ordered by date key, so grouping preserves order.
	type dateCount struct {
		date  string
		count int
	}
	var counts []dateCount
	for _, booking := range bookings {
		if len(counts) > 0 && counts[len(counts)-1].date == booking.Date {
			counts[len(counts)-1].count++
			continue
		}
		counts = append(counts, dateCount{date: booking.Date, count: 1})
	}

	for i, c := range counts {
		row := i + 2
		_ = f.SetCellValue(occupancySheet, fmt.Sprintf("A%d", row), c.date)
		_ = f.SetCellValue(occupancySheet, fmt.Sprintf("B%d", row), c.count)
		_ = f.SetCellValue(occupancySheet, fmt.Sprintf("C%d", row), s.capacity)
		if c.count >= s.capacity {
			_ = f.SetCellStyle(occupancySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), fullStyle)
		}
	}

	_ = f.SetColWidth(occupancySheet, "A", "A", 10)
	return nil
}
