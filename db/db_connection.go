//Package db mirrors the bot's documents into RethinkDB so other tools can query them.
package db

import (
	"fmt"

	"github.com/sirupsen/logrus"
	rethink "gopkg.in/gorethink/gorethink.v3"
)

const baseDbPoolConnections int = 2
const maxDbPoolConnections int = 20

//Connection contains a handle to the database
type Connection struct {
	session *rethink.Session
	dbName  string
}

//Init creates a new connection pool for the database at the given address, creating the database and
//tables if needed
func Init(addr, dbName string) (*Connection, error) {
	if addr == "" {
		return nil, fmt.Errorf("no rethinkdb address was provided")
	}
	//Create new connection pool to db
	session, err := rethink.Connect(rethink.ConnectOpts{
		Address:    addr,
		Database:   dbName,
		InitialCap: baseDbPoolConnections,
		MaxOpen:    maxDbPoolConnections,
	})
	if err != nil {
		logrus.Errorf("Failed to create connection to rethinkdb instance at address %v because %v.", addr, err)
		return nil, fmt.Errorf("failed to create connection to rethinkdb instance at address %v because %w", addr, err)
	}

	res := Connection{
		session: session,
		dbName:  dbName,
	}

	//Ensure database and required tables exist, and wait for it all to be ready
	res.CreateDatabase()
	res.CreateTables()

	return &res, nil
}

//Close cleanly terminates the database connection
func (db *Connection) Close() {
	logrus.Info("Terminating DB connection...")
	_ = db.session.Close()
}

//CreateTables ensures all tables needed exist.
func (db *Connection) CreateTables() {
	_, err := rethink.DB(db.dbName).TableCreate(documentsTable, rethink.TableCreateOpts{
		PrimaryKey: "id",
	}).RunWrite(db.session)
	if err != nil {
		logrus.Warnf("Failed to create %v table due to error %v", documentsTable, err)
	}
	err = rethink.DB(db.dbName).Table(documentsTable).Wait(rethink.WaitOpts{
		WaitFor: "ready_for_writes",
	}).Exec(db.session)
	if err != nil {
		logrus.Warnf("Failed waiting for %v table due to error %v", documentsTable, err)
	}
}

//CreateDatabase ensures the configured database exists
func (db *Connection) CreateDatabase() {
	_, err := rethink.DBCreate(db.dbName).RunWrite(db.session)
	if err != nil {
		logrus.Warnf("Failed to create %v DB due to error %v", db.dbName, err)
	}
}
