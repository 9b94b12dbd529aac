package sqlinline

const QWorkerClaimJob = `--sql e5796de1-5bdf-4d48-9f92-c0df46e85b76
update batch_jobs
set status = 'running', updated_at = now()
where id = (
    select id
    from batch_jobs
    where status = 'queued'
    order by created_at
    for update skip locked
    limit 1
)
returning id;
`

const QCountQueuedJobs = `--sql 572b2419-a6fc-4ba7-97b7-09bcd4f02992
select count(*)
from batch_jobs
where status = 'queued';
`
