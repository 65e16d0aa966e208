package sqlite

import "database/sql"

// schema sets up the database on startup.
// Amounts are stored as TEXT decimals in whole pesos; dates as YYYY-MM-DD.
// Sites must be created before every table that references them.
const schema = `
CREATE TABLE IF NOT EXISTS sites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'staff',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS practitioners (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    UNIQUE (site_id, name, kind),
    FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS services (
    site_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    price_list TEXT NOT NULL DEFAULT 'standard',
    price TEXT NOT NULL,
    PRIMARY KEY (site_id, name, price_list),
    FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payment_methods (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    UNIQUE (site_id, name),
    FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS patients (
    doc_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    credit_balance TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS service_records (
    id TEXT PRIMARY KEY,
    site_id INTEGER NOT NULL,
    practitioner_name TEXT NOT NULL,
    is_assistant INTEGER NOT NULL DEFAULT 0,
    patient_name TEXT NOT NULL,
    patient_doc_id TEXT NOT NULL,
    service_name TEXT NOT NULL,
    billed_total TEXT NOT NULL,
    outstanding TEXT NOT NULL,
    amount_paid TEXT NOT NULL,
    deposit TEXT NOT NULL DEFAULT '0',
    discount TEXT NOT NULL DEFAULT '0',
    payment_method TEXT NOT NULL DEFAULT '',
    deposit_method TEXT NOT NULL DEFAULT '',
    account_id INTEGER,
    deposit_account_id INTEGER,
    credit_holder TEXT NOT NULL DEFAULT '',
    credit_amount TEXT NOT NULL DEFAULT '0',
    tier_id INTEGER,
    stored_fraction TEXT,
    is_own_patient INTEGER NOT NULL DEFAULT 0,
    started_on TEXT NOT NULL,
    completed_on TEXT,
    notes TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settlement_reports (
    id TEXT PRIMARY KEY,
    site_id INTEGER NOT NULL,
    doctor TEXT NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    total TEXT NOT NULL,
    generated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settlement_rows (
    report_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    record_id TEXT NOT NULL,
    site_id INTEGER NOT NULL,
    date TEXT NOT NULL,
    patient_name TEXT NOT NULL,
    service_name TEXT NOT NULL,
    doctor_name TEXT NOT NULL,
    assistant_name TEXT NOT NULL,
    deposit TEXT NOT NULL,
    discount TEXT NOT NULL,
    billed_total TEXT NOT NULL,
    is_own_patient INTEGER NOT NULL,
    payout_fraction TEXT NOT NULL,
    payout_amount TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    deposit_method TEXT NOT NULL,
    amount_paid TEXT NOT NULL,
    notes TEXT NOT NULL,
    PRIMARY KEY (report_id, position),
    FOREIGN KEY (report_id) REFERENCES settlement_reports(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cash_drawers (
    site_id INTEGER PRIMARY KEY,
    balance TEXT NOT NULL DEFAULT '0',
    FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_service_records_site ON service_records(site_id, started_on);
CREATE INDEX IF NOT EXISTS idx_service_records_patient ON service_records(patient_doc_id, service_name);
CREATE INDEX IF NOT EXISTS idx_settlement_reports_site ON settlement_reports(site_id, generated_at);
CREATE INDEX IF NOT EXISTS idx_settlement_rows_site ON settlement_rows(site_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
