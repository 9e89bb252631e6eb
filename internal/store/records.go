package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

// InsertProcess writes a process record.
func (t *Tx) InsertProcess(ctx context.Context, p *model.Process) error {
	data, err := marshalJSON(p.Data)
	if err != nil {
		return fmt.Errorf("write process: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO process (uuid, type, warehouse_uuid, workflow_execution_uuid, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		p.UUID,
		p.Type,
		nullString(p.WarehouseUUID),
		nullString(p.WorkflowExecutionUUID),
		data,
		unixNano(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("write process: %w", err)
	}
	return nil
}

const processColumns = `uuid, type, warehouse_uuid, workflow_execution_uuid, data, created_at`

// GetProcess returns the process with the given UUID.
func (t *Tx) GetProcess(ctx context.Context, uuid string) (model.Process, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+processColumns+` FROM process WHERE uuid = ?`, uuid)
	p, err := scanProcess(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Process{}, apperr.NotFound("process", uuid)
	}
	if err != nil {
		return model.Process{}, fmt.Errorf("read process: %w", err)
	}
	return p, nil
}

// ListProcesses returns the processes of the given type, oldest first.
func (t *Tx) ListProcesses(ctx context.Context, processType string) ([]model.Process, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+processColumns+`
		FROM process
		WHERE type = ?
		ORDER BY created_at ASC, uuid ASC
	`, processType)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	defer rows.Close()

	var out []model.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("list processes: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	return out, nil
}

// SaveProcessData replaces a process's inputs and outputs.
func (t *Tx) SaveProcessData(ctx context.Context, p *model.Process) error {
	data, err := marshalJSON(p.Data)
	if err != nil {
		return fmt.Errorf("write process: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE process SET data = ? WHERE uuid = ?`, data, p.UUID)
	if err != nil {
		return fmt.Errorf("write process: %w", err)
	}
	return requireRow(res, "process", p.UUID)
}

func scanProcess(row scanner) (model.Process, error) {
	var (
		p                    model.Process
		warehouse, execution sql.NullString
		data                 string
		createdAt            int64
	)
	if err := row.Scan(&p.UUID, &p.Type, &warehouse, &execution, &data, &createdAt); err != nil {
		return model.Process{}, err
	}
	if err := unmarshalJSON(data, &p.Data); err != nil {
		return model.Process{}, err
	}
	p.WarehouseUUID = warehouse.String
	p.WorkflowExecutionUUID = execution.String
	p.CreatedAt = fromUnixNano(createdAt)
	return p, nil
}

// InsertQualityControl writes a quality-control record.
func (t *Tx) InsertQualityControl(ctx context.Context, qc *model.QualityControl) error {
	checklist, err := marshalJSON(qc.Checklist)
	if err != nil {
		return fmt.Errorf("write quality control: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO quality_control (uuid, process_uuid, task_execution_uuid, type, checklist, passed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		qc.UUID,
		qc.ProcessUUID,
		qc.TaskExecutionUUID,
		qc.Type,
		checklist,
		boolInt(qc.Passed),
		unixNano(qc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("write quality control: %w", err)
	}
	return nil
}

// ListQualityControls returns the QC records of a process in creation order.
func (t *Tx) ListQualityControls(ctx context.Context, processUUID string) ([]model.QualityControl, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT uuid, process_uuid, task_execution_uuid, type, checklist, passed, created_at
		FROM quality_control
		WHERE process_uuid = ?
		ORDER BY created_at ASC, uuid COLLATE BINARY ASC
	`, processUUID)
	if err != nil {
		return nil, fmt.Errorf("query quality controls: %w", err)
	}
	defer rows.Close()

	qcs := []model.QualityControl{}
	for rows.Next() {
		var (
			qc        model.QualityControl
			checklist string
			passed    int
			createdAt int64
		)
		if err := rows.Scan(&qc.UUID, &qc.ProcessUUID, &qc.TaskExecutionUUID, &qc.Type, &checklist, &passed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan quality control: %w", err)
		}
		if err := unmarshalJSON(checklist, &qc.Checklist); err != nil {
			return nil, err
		}
		qc.Passed = passed == 1
		qc.CreatedAt = fromUnixNano(createdAt)
		qcs = append(qcs, qc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quality controls: %w", err)
	}
	return qcs, nil
}

const tripColumns = `uuid, vehicle_uuid, start_warehouse_uuid, end_warehouse_uuid,
	service_area_uuid, status, data, created_at, updated_at`

// InsertTrip writes a trip record.
func (t *Tx) InsertTrip(ctx context.Context, trip *model.Trip) error {
	data, err := marshalJSON(trip.Data)
	if err != nil {
		return fmt.Errorf("write trip: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO trip (`+tripColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trip.UUID,
		nullString(trip.VehicleUUID),
		nullString(trip.StartWarehouseUUID),
		nullString(trip.EndWarehouseUUID),
		nullString(trip.ServiceAreaUUID),
		string(trip.Status),
		data,
		unixNano(trip.CreatedAt),
		unixNano(trip.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("write trip: %w", err)
	}
	return nil
}

// GetTrip returns the trip with the given UUID.
func (t *Tx) GetTrip(ctx context.Context, uuid string) (model.Trip, error) {
	var (
		trip                 model.Trip
		vehicle, start, end  sql.NullString
		area                 sql.NullString
		status, data         string
		createdAt, updatedAt int64
	)
	err := t.tx.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trip WHERE uuid = ?`, uuid).Scan(
		&trip.UUID, &vehicle, &start, &end, &area, &status, &data, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Trip{}, apperr.NotFound("trip", uuid)
	}
	if err != nil {
		return model.Trip{}, fmt.Errorf("read trip: %w", err)
	}
	if err := unmarshalJSON(data, &trip.Data); err != nil {
		return model.Trip{}, fmt.Errorf("read trip: %w", err)
	}
	trip.VehicleUUID = vehicle.String
	trip.StartWarehouseUUID = start.String
	trip.EndWarehouseUUID = end.String
	trip.ServiceAreaUUID = area.String
	trip.Status = model.TripStatus(status)
	trip.CreatedAt = fromUnixNano(createdAt)
	trip.UpdatedAt = fromUnixNano(updatedAt)
	return trip, nil
}

// SaveTrip updates a trip's mutable fields.
func (t *Tx) SaveTrip(ctx context.Context, trip *model.Trip) error {
	data, err := marshalJSON(trip.Data)
	if err != nil {
		return fmt.Errorf("write trip: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE trip
		SET vehicle_uuid = ?, start_warehouse_uuid = ?, end_warehouse_uuid = ?,
		    service_area_uuid = ?, status = ?, data = ?, updated_at = ?
		WHERE uuid = ?
	`,
		nullString(trip.VehicleUUID),
		nullString(trip.StartWarehouseUUID),
		nullString(trip.EndWarehouseUUID),
		nullString(trip.ServiceAreaUUID),
		string(trip.Status),
		data,
		unixNano(trip.UpdatedAt),
		trip.UUID,
	)
	if err != nil {
		return fmt.Errorf("write trip: %w", err)
	}
	return requireRow(res, "trip", trip.UUID)
}
