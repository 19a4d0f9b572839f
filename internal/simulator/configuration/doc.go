/*
Package configuration defines the input configuration for a simulation run.

A run is described by a single YAML document covering the synthetic schema, the
workloads to drive against it, the monitoring schedules, the recommendation
heuristics, and the global simulation parameters.

# Example YAML Configuration

	database:
	  postgres:
	    host: localhost
	    port: "5432"
	    user: sqlsim
	    dbname: sqlsim_test
	    sslmode: disable
	    pool_max_conns: "16"
	schema_config:
	  tables:
	    - name: Users
	      row_count: 100
	      columns:
	        - name: UserID
	          type: INT
	          primary_key: true
	          identity: true
	        - name: Username
	          type: VARCHAR
	          length: 50
	          unique: true
	          generator: username
	    - name: Posts
	      row_count: 200
	      columns:
	        - name: PostID
	          type: INT
	          primary_key: true
	          identity: true
	        - name: UserID
	          type: INT
	          foreign_key: {table: Users, column: UserID}
	        - name: Body
	          type: TEXT
	          generator: paragraph
	      indexes:
	        - name: IX_Posts_UserID
	          columns: [UserID]
	workloads:
	  - name: Simple_User_Lookups
	    type: OLTP
	    duration_seconds: 60
	    concurrency: 2
	    queries:
	      - name: GetUserByID
	        template: SELECT * FROM "Users" WHERE "UserID" = $1
	        weight: 5
	        param_generators:
	          - type: random_int_from_column_range
	            table: Users
	            column: UserID
	monitoring:
	  os_metrics: [cpu_percent, memory_percent, disk_io_counters]
	  monitoring_interval_seconds: 5
	  dbms_metrics:
	    - name: index_usage
	      query: SELECT relname, idx_scan FROM pg_stat_user_indexes
	      frequency_seconds: 15
	recommendation_config:
	  heuristics:
	    - name: unused_index
	      dmv: index_usage
	      condition: idx_scan == 0
	      recommendation_template: "Index on {relname} was never scanned; consider dropping it."
	simulation_parameters:
	  global_duration_seconds: 120
	  data_generation_batch_size: 1000
	  recreate_schema_on_run: true
	  output_directory: simulation_results

# Validation

Each configuration struct has a Validate method; Config.Validate walks the whole
tree and aggregates every problem found, so a malformed run is rejected in full
before any database traffic is generated. Cross-references are checked here too:
foreign keys must point at an existing key column, workload parameter generators
must point at a populated key column, and heuristics must target a declared DBMS
metric.
*/
package configuration
